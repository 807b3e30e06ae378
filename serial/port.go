package serial

import (
	"bytes"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Port is a line-oriented serial channel to the stage controller board.
type Port interface {
	// Send writes a single command line.
	Send(cmd string) error

	// Read returns the next response line. It waits at most the port's
	// read timeout and returns an empty slice if no line arrived.
	Read() ([]byte, error)

	// Clear discards any buffered input.
	Clear() error

	Close() error
}

const (
	baudRate    = 115200
	readTimeout = 250 * time.Millisecond
)

// DevicePort is a Port backed by a physical serial device.
type DevicePort struct {
	log  *logrus.Logger
	port *serial.Port

	pending []byte
}

var _ Port = &DevicePort{}

// Open connects to the controller board on the named device.
func Open(name string, log *logrus.Logger) (*DevicePort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baudRate,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}
	p := &DevicePort{log: log, port: port}
	return p, p.Clear()
}

func (p *DevicePort) Send(cmd string) error {
	p.log.Debugf("serial write: %q", cmd)
	_, err := p.port.Write([]byte(cmd + "\n"))
	if err != nil {
		return err
	}
	return p.port.Flush()
}

func (p *DevicePort) Read() ([]byte, error) {
	if line := p.takeLine(); line != nil {
		return line, nil
	}

	buf := make([]byte, 256)
	n, err := p.port.Read(buf)
	if err == io.EOF {
		// read timeout, nothing buffered
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.pending = append(p.pending, buf[:n]...)

	line := p.takeLine()
	if line != nil {
		p.log.Debugf("serial read: %q", line)
	}
	return line, nil
}

// takeLine removes and returns the first full line from the pending
// buffer, including its newline.
func (p *DevicePort) takeLine() []byte {
	i := bytes.IndexByte(p.pending, '\n')
	if i < 0 {
		return nil
	}
	line := p.pending[:i+1]
	p.pending = p.pending[i+1:]
	return line
}

func (p *DevicePort) Clear() error {
	p.pending = nil
	return p.port.Flush()
}

func (p *DevicePort) Close() error {
	p.log.Info("Closing serial port.")
	return p.port.Close()
}
