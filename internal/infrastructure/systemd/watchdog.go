package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

// Notifier reports READY and WATCHDOG to systemd. Outside a systemd unit
// every call is a no-op.
type Notifier struct {
	log    *zap.Logger
	notify func(unsetEnv bool, state string) (bool, error)
}

func New(log *zap.Logger) *Notifier {
	return &Notifier{log: log.Named("systemd"), notify: daemon.SdNotify}
}

func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

func (n *Notifier) Alive() { n.send(daemon.SdNotifyWatchdog) }

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", zap.String("state", state), zap.Error(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify", zap.String("state", state))
	}
}
