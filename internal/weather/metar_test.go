package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMETARTypicalReport(t *testing.T) {
	raw := "KSFO 201356Z 28012G18KT 10SM FEW012 BKN025 OVC040 15/09 A3002"
	p := ParseMETAR(raw)

	require.NotNil(t, p.WindDirectionDeg)
	assert.Equal(t, 280, *p.WindDirectionDeg)
	require.NotNil(t, p.WindSpeedKt)
	assert.Equal(t, 12, *p.WindSpeedKt)
	require.NotNil(t, p.WindGustKt)
	assert.Equal(t, 18, *p.WindGustKt)

	require.NotNil(t, p.VisibilitySM)
	assert.InDelta(t, 10, *p.VisibilitySM, 1e-9)

	// Lowest BKN/OVC layer wins
	require.NotNil(t, p.CeilingFt)
	assert.Equal(t, 2500, *p.CeilingFt)

	// 15C is 59F
	require.NotNil(t, p.TemperatureF)
	assert.Equal(t, 59, *p.TemperatureF)
}

func TestParseMETARVariableWind(t *testing.T) {
	p := ParseMETAR("KOAK 201353Z VRB04KT 10SM CLR 18/08 A3001")
	assert.Nil(t, p.WindDirectionDeg)
	require.NotNil(t, p.WindSpeedKt)
	assert.Equal(t, 4, *p.WindSpeedKt)
	assert.Nil(t, p.CeilingFt)
}

func TestParseMETARFractionalVisibility(t *testing.T) {
	p := ParseMETAR("KHAF 201355Z 00000KT 1/2SM FG VV002 10/10 A3010")
	require.NotNil(t, p.VisibilitySM)
	assert.InDelta(t, 0.5, *p.VisibilitySM, 1e-9)
	require.NotNil(t, p.CeilingFt)
	assert.Equal(t, 200, *p.CeilingFt)

	p = ParseMETAR("KSQL 201350Z 29008KT 1 1/2SM BR OVC004 12/11 A3008")
	require.NotNil(t, p.VisibilitySM)
	assert.InDelta(t, 1.5, *p.VisibilitySM, 1e-9)
}

func TestParseMETARPlusVisibility(t *testing.T) {
	p := ParseMETAR("CYVR 201400Z 27010KT P6SM SCT030 14/08 A3005")
	require.NotNil(t, p.VisibilitySM)
	assert.InDelta(t, 6, *p.VisibilitySM, 1e-9)
	// SCT is not a ceiling
	assert.Nil(t, p.CeilingFt)
}

func TestParseMETARNegativeTemperature(t *testing.T) {
	p := ParseMETAR("KDEN 201353Z 36015KT 10SM OVC015 M05/M12 A2992")
	require.NotNil(t, p.TemperatureF)
	assert.Equal(t, 23, *p.TemperatureF)
}

func TestParseMETAREmpty(t *testing.T) {
	p := ParseMETAR("")
	assert.Nil(t, p.WindSpeedKt)
	assert.Nil(t, p.VisibilitySM)
	assert.Nil(t, p.CeilingFt)
	assert.Nil(t, p.TemperatureF)
}
