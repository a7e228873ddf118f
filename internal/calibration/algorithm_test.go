package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrate_Affine(t *testing.T) {
	for _, a := range []Algorithm{Standard, IPhone4Legacy, IPhone5Legacy} {
		c := a.Coefficients()
		for _, f := range []float64{0, 0.5, 1, 9.84375, 30} {
			assert.Equal(t, c.FrequencyStart+c.FrequencyFactor*f, Calibrate(f, a), "%s at %f Hz", a, f)
		}
		assert.Equal(t, c.FrequencyStart, a.Calibrate(0))
	}
}

func TestCalibrate_Table(t *testing.T) {
	assert.Equal(t, Coefficients{FrequencyStart: 0.238, FrequencyFactor: 1.07}, Standard.Coefficients())
	assert.Equal(t, Coefficients{FrequencyStart: 0.238, FrequencyFactor: 1.16}, IPhone4Legacy.Coefficients())
	assert.Equal(t, Coefficients{FrequencyStart: 0.238, FrequencyFactor: 1.04}, IPhone5Legacy.Coefficients())
	assert.Equal(t, Standard.Coefficients(), Algorithm(42).Coefficients())
}

func TestForDevice(t *testing.T) {
	tests := map[string]Algorithm{
		"iPhone3,1": IPhone4Legacy,
		"iPhone5,2": IPhone5Legacy,
		"iPhone6,1": IPhone5Legacy,
		"iPhone7,2": Standard,
		"":          Standard,
	}
	for model, want := range tests {
		assert.Equal(t, want, ForDevice(model), model)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("IPHONE4", "")
	require.NoError(t, err)
	assert.Equal(t, IPhone4Legacy, a)

	a, err = ParseAlgorithm("auto", "iPhone5,3")
	require.NoError(t, err)
	assert.Equal(t, IPhone5Legacy, a)

	_, err = ParseAlgorithm("windy", "")
	assert.Error(t, err)
}
