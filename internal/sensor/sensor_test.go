package sensor

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewLogger(&bytes.Buffer{}, "[test]", logger.LogLevelDebug)
}

func writeAttribute(t *testing.T, dir, name, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644))
}

func TestIIOHygrometerScalesMilliUnits(t *testing.T) {
	dir := t.TempDir()
	writeAttribute(t, dir, "in_temp_input", "24500")
	writeAttribute(t, dir, "in_humidityrelative_input", "60200")

	h := NewIIOHygrometer(dir)

	temperature, err := h.ReadTemperature()
	assert.NoError(t, err)
	assert.InDelta(t, 24.5, temperature, 1e-9)

	humidity, err := h.ReadHumidity()
	assert.NoError(t, err)
	assert.InDelta(t, 60.2, humidity, 1e-9)
}

func TestIIOHygrometerMissingAttribute(t *testing.T) {
	h := NewIIOHygrometer(t.TempDir())

	_, err := h.ReadTemperature()
	assert.Error(t, err)
}

func TestIIOADCReadsChannel(t *testing.T) {
	dir := t.TempDir()
	writeAttribute(t, dir, "in_voltage6_raw", "2048")
	writeAttribute(t, dir, "in_voltage7_raw", "bogus")

	raw, err := NewIIOADC(dir, 6).ReadRaw()
	assert.NoError(t, err)
	assert.Equal(t, 2048, raw)

	_, err = NewIIOADC(dir, 7).ReadRaw()
	assert.Error(t, err)
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    frame
		wantErr bool
	}{
		{name: "plain", line: "24.5,60.2,2048", want: frame{temperature: 24.5, humidity: 60.2, potentiometer: 2048}},
		{name: "spaces and CR", line: " 21.0, 55.5 ,10\r", want: frame{temperature: 21, humidity: 55.5, potentiometer: 10}},
		{name: "too few fields", line: "24.5,60.2", wantErr: true},
		{name: "bad temperature", line: "x,60.2,1", wantErr: true},
		{name: "bad humidity", line: "1,y,1", wantErr: true},
		{name: "bad potentiometer", line: "1,2,3.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFrame(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrameAcceptsNaN(t *testing.T) {
	f, err := parseFrame("nan,nan,100")
	assert.NoError(t, err)
	assert.True(t, math.IsNaN(f.temperature))
	assert.True(t, math.IsNaN(f.humidity))
}

func TestSerialDriverKeepsLatestFrame(t *testing.T) {
	port := io.NopCloser(strings.NewReader("20.0,50.0,1\ngarbage\n24.5,60.2,2048\n"))
	d := newSerialDriver(port, nil, time.Minute, time.Millisecond, testLogger())
	<-d.done

	temperature, err := d.ReadTemperature()
	assert.NoError(t, err)
	assert.Equal(t, 24.5, temperature)

	humidity, err := d.ReadHumidity()
	assert.NoError(t, err)
	assert.Equal(t, 60.2, humidity)

	raw, err := d.ReadRaw()
	assert.NoError(t, err)
	assert.Equal(t, 2048, raw)

	assert.NoError(t, d.Close())
}

func TestSerialDriverStaleFrame(t *testing.T) {
	d := newSerialDriver(io.NopCloser(strings.NewReader("24.5,60.2,2048\n")), nil, time.Second, time.Millisecond, testLogger())
	<-d.done

	d.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err := d.ReadTemperature()
	assert.ErrorIs(t, err, ErrStaleFrame)
}

func TestSerialDriverWithoutFrame(t *testing.T) {
	d := newSerialDriver(io.NopCloser(strings.NewReader("")), nil, time.Second, time.Millisecond, testLogger())
	<-d.done

	_, err := d.ReadRaw()
	assert.ErrorIs(t, err, ErrStaleFrame)
}

func TestSerialDriverSurvivesLineNoise(t *testing.T) {
	noise := strings.Repeat("\xff", 70*1024)
	port := io.NopCloser(strings.NewReader(noise + "\n" + noise + "24.5,60.2,2048\n" + "21.0,50.0,7\n"))
	d := newSerialDriver(port, nil, time.Minute, time.Millisecond, testLogger())
	<-d.done

	// the frame glued to the second burst is part of the dropped line
	raw, err := d.ReadRaw()
	assert.NoError(t, err)
	assert.Equal(t, 7, raw)
}

func TestSerialDriverLastLineWithoutNewline(t *testing.T) {
	d := newSerialDriver(io.NopCloser(strings.NewReader("24.5,60.2,2048")), nil, time.Minute, time.Millisecond, testLogger())
	<-d.done

	raw, err := d.ReadRaw()
	assert.NoError(t, err)
	assert.Equal(t, 2048, raw)
}

type failingPort struct {
	data io.Reader
}

func (p *failingPort) Read(b []byte) (int, error) {
	n, err := p.data.Read(b)
	if err == io.EOF {
		return n, errors.New("device disconnected")
	}
	return n, err
}

func (p *failingPort) Close() error { return nil }

func TestSerialDriverReopensAfterReadError(t *testing.T) {
	var opens int32
	open := func() (io.ReadCloser, error) {
		if atomic.AddInt32(&opens, 1) == 2 {
			return io.NopCloser(strings.NewReader("24.5,60.2,2048\n")), nil
		}
		return nil, errors.New("no such device")
	}

	first := &failingPort{data: strings.NewReader("20.0,50.0,1\n")}
	d := newSerialDriver(first, open, time.Minute, time.Millisecond, testLogger())

	assert.Eventually(t, func() bool {
		raw, err := d.ReadRaw()
		return err == nil && raw == 2048
	}, time.Second, time.Millisecond)

	assert.NoError(t, d.Close())
	<-d.done
	assert.GreaterOrEqual(t, atomic.LoadInt32(&opens), int32(2))
}

func TestSerialDriverCloseStopsReopening(t *testing.T) {
	open := func() (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	}

	d := newSerialDriver(&failingPort{data: strings.NewReader("")}, open, time.Minute, time.Hour, testLogger())

	assert.NoError(t, d.Close())
	<-d.done

	_, err := d.ReadTemperature()
	assert.ErrorIs(t, err, ErrStaleFrame)
}

func TestSimulatorStaysInRange(t *testing.T) {
	s := NewSimulator(1)

	for i := 0; i < 1000; i++ {
		temperature, _ := s.ReadTemperature()
		humidity, _ := s.ReadHumidity()
		raw, _ := s.ReadRaw()

		assert.True(t, temperature >= -10 && temperature <= 50)
		assert.True(t, humidity >= 0 && humidity <= 100)
		assert.True(t, raw >= 0 && raw <= 4095)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	cfg := configuration.Default()
	cfg.Sensor.Driver = configuration.SensorDriverSim

	d, err := New(&cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &Simulator{}, d.Hygrometer)
	assert.NoError(t, d.Close())

	cfg.Sensor.Driver = configuration.SensorDriverIIO
	d, err = New(&cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &iioHygrometer{}, d.Hygrometer)
	assert.IsType(t, &iioADC{}, d.Analog)

	cfg.Sensor.Driver = "onewire"
	_, err = New(&cfg, testLogger())
	assert.Error(t, err)
}
