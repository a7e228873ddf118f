package sensor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantMag *MagneticSample
		wantIMU *IMUSample
		wantErr bool
	}{
		{
			name:    "magnetometer",
			line:    "M,1000000000,1.5,-2,30",
			wantMag: &MagneticSample{Timestamp: time.Unix(1, 0), X: 1.5, Y: -2, Z: 30},
		},
		{
			name: "imu",
			line: "I, 2000000000, 0.01, 0.02, -0.99, 0.1, 0.2, 0.3",
			wantIMU: &IMUSample{
				Timestamp: time.Unix(2, 0),
				Ax:        0.01, Ay: 0.02, Az: -0.99,
				Gx: 0.1, Gy: 0.2, Gz: 0.3,
			},
		},
		{name: "unknown type", line: "X,1,2,3,4", wantErr: true},
		{name: "bad timestamp", line: "M,abc,1,2,3", wantErr: true},
		{name: "short magnetometer", line: "M,1,2,3", wantErr: true},
		{name: "bad value", line: "I,1,a,2,3,4,5,6", wantErr: true},
		{name: "empty", line: "M", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, i, err := ParseLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMag, m)
			assert.Equal(t, tt.wantIMU, i)
		})
	}
}

func TestCommand_StreamsSamples(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	script := `printf 'M,1,1,2,3\nI,2,0,0,-1,0,0,0\nM,3,4,5,6\n'; exec sleep 5`
	c := NewCommand(sh, []string{"-c", script})

	got := make(chan MagneticSample, 4)
	c.Magnetic().Subscribe(uuid.New(), func(s MagneticSample) { got <- s })

	require.NoError(t, c.Magnetic().Start())
	defer func() {
		require.NoError(t, c.Magnetic().Stop())
		assert.False(t, c.IsSampling())
	}()

	for _, want := range []float64{1, 4} {
		select {
		case s := <-got:
			assert.Equal(t, want, s.X)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for samples")
		}
	}
}
