package simulation

import (
	"context"
	"errors"
	"net/http"

	"github.com/dennisdiepolder/monti/console/internal/backend"
	"github.com/dennisdiepolder/monti/console/internal/poller"
	"github.com/dennisdiepolder/monti/console/internal/types"
	"github.com/rs/zerolog"
)

// Commander issues simulation commands to the backend
type Commander interface {
	StartSimulation(ctx context.Context, batchCount int, policy types.Policy) error
	StopSimulation(ctx context.Context) error
}

// Refresher forces an out-of-cadence poll
type Refresher interface {
	Refresh(category poller.Category) bool
}

// Recorder observes command outcomes
type Recorder interface {
	RecordCommand(command string, err error)
}

// Controller validates operator commands and forwards them to the backend
type Controller struct {
	commander Commander
	refresher Refresher
	recorder  Recorder
	logger    zerolog.Logger
}

// NewController creates a controller. refresher and recorder may be nil.
func NewController(commander Commander, refresher Refresher, recorder Recorder, logger zerolog.Logger) *Controller {
	return &Controller{
		commander: commander,
		refresher: refresher,
		recorder:  recorder,
		logger:    logger.With().Str("component", "simulation").Logger(),
	}
}

// Start asks the backend to run batchCount batches with the named policy.
// Input is validated before any request is issued.
func (c *Controller) Start(ctx context.Context, batchCount int, policyName string) error {
	policy, err := types.ParsePolicy(policyName)
	if err != nil {
		err = &backend.ValidationError{Field: "policy", Reason: err.Error()}
		c.finish("start", err)
		return err
	}

	err = c.commander.StartSimulation(ctx, batchCount, policy)
	err = commandError("start", err)
	c.finish("start", err)
	if err != nil {
		return err
	}

	c.logger.Info().
		Int("batches", batchCount).
		Str("policy", string(policy)).
		Msg("simulation started")
	return nil
}

// Stop asks the backend to stop the running simulation. Stopping a
// simulation that is not running succeeds.
func (c *Controller) Stop(ctx context.Context) error {
	err := c.commander.StopSimulation(ctx)

	var fe *backend.FetchError
	if errors.As(err, &fe) && fe.Kind == backend.KindHTTP && fe.Status == http.StatusConflict {
		c.logger.Debug().Msg("stop requested but no simulation is running")
		err = nil
	}

	err = commandError("stop", err)
	c.finish("stop", err)
	if err != nil {
		return err
	}

	c.logger.Info().Msg("simulation stopped")
	return nil
}

// finish records the outcome and refreshes live data after a successful command
func (c *Controller) finish(command string, err error) {
	if c.recorder != nil {
		c.recorder.RecordCommand(command, err)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("command", command).Msg("simulation command failed")
		return
	}
	if c.refresher != nil {
		c.refresher.Refresh(poller.CategoryLive)
	}
}

// commandError turns a backend rejection into a CommandError. Validation and
// transport failures pass through unchanged.
func commandError(command string, err error) error {
	var fe *backend.FetchError
	if errors.As(err, &fe) && fe.Kind == backend.KindHTTP {
		return &backend.CommandError{Command: command, Status: fe.Status, Detail: fe.Detail}
	}
	return err
}
