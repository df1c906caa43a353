package rebalancing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/settings"
	"github.com/rs/zerolog"
)

// Settings keys for the persisted rebalance configuration
const (
	keyDeviationThreshold = "deviation_threshold_bps"
	keyMinRebalanceAmount = "min_rebalance_amount"
	keyLastRebalanceAt    = "last_rebalance_at"
)

// DefaultDeviationThresholdBps applies until an admin sets a threshold.
const DefaultDeviationThresholdBps uint64 = 500

// ConfigStore reads and writes the persisted RebalanceConfig through the
// settings repository. Changes take effect on the next call; nothing is
// cached here.
type ConfigStore struct {
	settings *settings.Repository
	bus      *events.Bus
	log      zerolog.Logger
}

// NewConfigStore creates a new rebalance config store
func NewConfigStore(settingsRepo *settings.Repository, bus *events.Bus, log zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		settings: settingsRepo,
		bus:      bus,
		log:      log.With().Str("component", "rebalance_config").Logger(),
	}
}

// Get returns the current persisted configuration
func (c *ConfigStore) Get() (domain.RebalanceConfig, error) {
	threshold, err := c.settings.GetUint64(keyDeviationThreshold, DefaultDeviationThresholdBps)
	if err != nil {
		return domain.RebalanceConfig{}, err
	}
	minAmount, err := c.settings.GetUint64(keyMinRebalanceAmount, 0)
	if err != nil {
		return domain.RebalanceConfig{}, err
	}
	lastAt, err := c.settings.GetTime(keyLastRebalanceAt)
	if err != nil {
		return domain.RebalanceConfig{}, err
	}

	return domain.RebalanceConfig{
		DeviationThresholdBps: threshold,
		MinRebalanceAmount:    minAmount,
		LastRebalanceAt:       lastAt,
	}, nil
}

// SetDeviationThreshold updates the rebalance trigger threshold.
// Thresholds above 2000 bps are rejected.
func (c *ConfigStore) SetDeviationThreshold(bps uint64) error {
	if bps > domain.MaxDeviationThresholdBps {
		return fmt.Errorf("%w: deviation threshold %d exceeds %d bps",
			domain.ErrInvalidAllocation, bps, domain.MaxDeviationThresholdBps)
	}
	if err := c.settings.SetUint64(keyDeviationThreshold, bps); err != nil {
		return err
	}

	c.log.Info().Uint64("threshold_bps", bps).Msg("Deviation threshold updated")
	if c.bus != nil {
		c.bus.Publish(&events.ConfigChangedData{
			Key:      keyDeviationThreshold,
			NewValue: strconv.FormatUint(bps, 10),
		})
	}
	return nil
}

// SetMinRebalanceAmount updates the minimum portfolio total required for a
// rebalance to run.
func (c *ConfigStore) SetMinRebalanceAmount(amount uint64) error {
	if err := c.settings.SetUint64(keyMinRebalanceAmount, amount); err != nil {
		return err
	}

	c.log.Info().Uint64("min_amount", amount).Msg("Minimum rebalance amount updated")
	if c.bus != nil {
		c.bus.Publish(&events.ConfigChangedData{
			Key:      keyMinRebalanceAmount,
			NewValue: strconv.FormatUint(amount, 10),
		})
	}
	return nil
}

// setLastRebalanceAt records the completion time of a successful rebalance
func (c *ConfigStore) setLastRebalanceAt(t time.Time) error {
	return c.settings.SetTime(keyLastRebalanceAt, t)
}
