package serial

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SimPort is a stand-in for a controller board. Every command is
// acknowledged with "ok" after a fixed delay, so the full protocol
// engine runs without hardware attached.
type SimPort struct {
	log   *logrus.Logger
	delay time.Duration
}

var _ Port = &SimPort{}

// NewSim returns a simulated port. A zero delay defaults to 500ms,
// roughly what a real board needs for a short move.
func NewSim(log *logrus.Logger, delay time.Duration) *SimPort {
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &SimPort{log: log, delay: delay}
}

func (p *SimPort) Send(cmd string) error {
	p.log.Infof("Sending: %s", cmd)
	return nil
}

func (p *SimPort) Read() ([]byte, error) {
	time.Sleep(p.delay)
	return []byte("ok\n"), nil
}

func (p *SimPort) Clear() error {
	p.log.Info("Clearing serial buffer.")
	return nil
}

func (p *SimPort) Close() error { return nil }
