package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
	"go.bug.st/serial.v1"
)

var (
	ErrStaleFrame     = errors.New("no recent sensor frame")
	ErrMalformedFrame = errors.New("malformed sensor frame")
)

type frame struct {
	temperature   float64
	humidity      float64
	potentiometer int
	received      time.Time
}

// maxFrameLength bounds a single CSV line. Longer lines are line noise and
// are dropped up to the next newline.
const maxFrameLength = 1024

// SerialDriver reads CSV frames "temperature,humidity,potentiometer" streamed
// by a microcontroller over a UART. It serves both Hygrometer and AnalogInput
// from the latest frame.
type SerialDriver struct {
	maxAge     time.Duration
	retryDelay time.Duration
	now        func() time.Time
	logger     logger.Logger

	// open reopens the port after a read error. nil means give up.
	open func() (io.ReadCloser, error)

	portMu  sync.Mutex
	port    io.ReadCloser
	closed  bool
	closing chan struct{}

	mu     sync.Mutex
	latest *frame

	done chan struct{}
}

func OpenSerial(config configuration.SerialConfiguration, l logger.Logger) (*SerialDriver, error) {
	open := func() (io.ReadCloser, error) {
		mode := &serial.Mode{
			BaudRate: int(config.BaudRate),
		}

		port, err := serial.Open(config.PortName, mode)
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", config.PortName, err)
		}
		return port, nil
	}

	port, err := open()
	if err != nil {
		return nil, err
	}

	return newSerialDriver(port, open, config.MaxAge, config.MaxAge, l), nil
}

func newSerialDriver(
	port io.ReadCloser,
	open func() (io.ReadCloser, error),
	maxAge time.Duration,
	retryDelay time.Duration,
	l logger.Logger) *SerialDriver {
	d := &SerialDriver{
		maxAge:     maxAge,
		retryDelay: retryDelay,
		now:        time.Now,
		logger:     l.WithPrefix("[Serial Sensor]"),
		open:       open,
		port:       port,
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	go d.readLoop(port)

	return d
}

// readLoop reads frames until Close, reopening the port after read errors.
func (d *SerialDriver) readLoop(port io.ReadCloser) {
	defer close(d.done)

	for {
		err := d.readFrames(port)
		if d.isClosed() {
			return
		}

		if err == io.EOF {
			d.logger.Warn("Serial port closed")
		} else {
			d.logger.Error("Reading serial port failed: %v", err)
		}
		d.releasePort(port)

		if d.open == nil {
			return
		}
		if port = d.reopen(); port == nil {
			return
		}
	}
}

// readFrames returns the error that ended reading, io.EOF included.
func (d *SerialDriver) readFrames(r io.Reader) error {
	reader := bufio.NewReaderSize(r, maxFrameLength)
	discarding := false

	for {
		line, err := reader.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			if !discarding {
				d.logger.Debug("Dropping line longer than %v bytes", maxFrameLength)
			}
			discarding = true
			continue
		}

		if len(line) > 0 && !discarding {
			d.handleLine(string(line))
		}
		discarding = false

		if err != nil {
			return err
		}
	}
}

func (d *SerialDriver) handleLine(line string) {
	f, err := parseFrame(line)
	if err != nil {
		d.logger.Debug("Skipping frame: %v", err)
		return
	}

	f.received = d.now()

	d.mu.Lock()
	d.latest = &f
	d.mu.Unlock()
}

// reopen retries every retryDelay and returns nil once Close was called.
func (d *SerialDriver) reopen() io.ReadCloser {
	for attempt := 1; ; attempt++ {
		timer := time.NewTimer(d.retryDelay)
		select {
		case <-d.closing:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		port, err := d.open()
		if err != nil {
			d.logger.Warn("Reopen attempt %v failed: %v", attempt, err)
			continue
		}

		d.portMu.Lock()
		if d.closed {
			d.portMu.Unlock()
			port.Close()
			return nil
		}
		d.port = port
		d.portMu.Unlock()

		d.logger.Info("Serial port reopened")
		return port
	}
}

func (d *SerialDriver) releasePort(port io.ReadCloser) {
	d.portMu.Lock()
	d.port = nil
	d.portMu.Unlock()

	port.Close()
}

func (d *SerialDriver) isClosed() bool {
	d.portMu.Lock()
	defer d.portMu.Unlock()
	return d.closed
}

func (d *SerialDriver) current() (frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.latest == nil {
		return frame{}, ErrStaleFrame
	}
	if age := d.now().Sub(d.latest.received); age > d.maxAge {
		return frame{}, fmt.Errorf("%w: last frame is %v old", ErrStaleFrame, age.Round(time.Second))
	}

	return *d.latest, nil
}

func (d *SerialDriver) ReadTemperature() (float64, error) {
	f, err := d.current()
	return f.temperature, err
}

func (d *SerialDriver) ReadHumidity() (float64, error) {
	f, err := d.current()
	return f.humidity, err
}

func (d *SerialDriver) ReadRaw() (int, error) {
	f, err := d.current()
	return f.potentiometer, err
}

// Close stops the reader. It does not wait for a blocked read to return.
func (d *SerialDriver) Close() error {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	close(d.closing)

	if d.port == nil {
		return nil
	}
	return d.port.Close()
}

// parseFrame accepts "nan" for a failed reading so that the fault reaches
// the publisher as NaN.
func parseFrame(line string) (frame, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return frame{}, fmt.Errorf("%w: %q has %d fields", ErrMalformedFrame, line, len(fields))
	}

	temperature, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return frame{}, fmt.Errorf("%w: temperature %q", ErrMalformedFrame, fields[0])
	}

	humidity, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return frame{}, fmt.Errorf("%w: humidity %q", ErrMalformedFrame, fields[1])
	}

	potentiometer, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return frame{}, fmt.Errorf("%w: potentiometer %q", ErrMalformedFrame, fields[2])
	}

	return frame{
		temperature:   temperature,
		humidity:      humidity,
		potentiometer: potentiometer,
	}, nil
}
