package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
)

// Checker runs periodic alert checks in the background. An alert is sent
// once when raised and again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	active map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		active:    make(map[AlertType]bool),
	}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckIntervalSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
}

// Run checks once, then on every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", c.interval()),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	if ctx.Err() == nil {
		c.check(ctx, log)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check collects one snapshot and returns how many alerts were sent.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, "", c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return 0
	}

	raised := make(map[AlertType]bool)
	var fresh []Alert
	for _, a := range c.alerter.Evaluate(snap) {
		raised[a.Type] = true
		if !c.active[a.Type] {
			log.Warn(a.Message, zap.String("type", string(a.Type)))
			fresh = append(fresh, a)
		}
	}
	for t := range c.active {
		if !raised[t] {
			log.Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.active = raised

	if len(fresh) == 0 {
		log.Debug("monitoring: no new alerts")
		return 0
	}
	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_raised", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
	return sent
}
