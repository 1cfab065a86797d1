// Package service provides a minimal start/stop lifecycle helper, the same
// shape as the teacher's libs/service package, so the Synchronizer (and any
// other long-running component) gets idempotent Start/Stop/Wait for free.
package service

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gonvs/nodesync/libs/log"
)

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrAlreadyStopped = errors.New("already stopped")
)

// Service is anything that runs until its context is canceled.
type Service interface {
	Start(context.Context) error
	IsRunning() bool
	String() string
	Wait()
}

// Implementation is what a concrete service must provide; BaseService calls
// OnStart once on Start and OnStop once the context is canceled or Stop is
// called explicitly.
type Implementation interface {
	Service
	OnStart(context.Context) error
	OnStop()
}

// BaseService is embedded by every long-running component in this module
// (in particular sync.Synchronizer) to get a uniform start-once/stop-once
// lifecycle without hand-rolled atomics at each call site.
type BaseService struct {
	logger  log.Logger
	name    string
	started uint32
	stopped uint32
	quit    chan struct{}
	impl    Implementation
}

func NewBaseService(logger log.Logger, name string, impl Implementation) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		logger: logger,
		name:   name,
		quit:   make(chan struct{}),
		impl:   impl,
	}
}

func (bs *BaseService) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&bs.started, 0, 1) {
		return ErrAlreadyStarted
	}
	if atomic.LoadUint32(&bs.stopped) == 1 {
		atomic.StoreUint32(&bs.started, 0)
		return ErrAlreadyStopped
	}

	bs.logger.Info("starting service", "service", bs.name)

	if err := bs.impl.OnStart(ctx); err != nil {
		atomic.StoreUint32(&bs.started, 0)
		return err
	}

	go func() {
		select {
		case <-bs.quit:
			return
		case <-ctx.Done():
			bs.Stop()
		}
	}()

	return nil
}

// Stop cancels the service if it is running. Safe to call more than once.
func (bs *BaseService) Stop() error {
	if !atomic.CompareAndSwapUint32(&bs.stopped, 0, 1) {
		return ErrAlreadyStopped
	}
	bs.logger.Info("stopping service", "service", bs.name)
	bs.impl.OnStop()
	close(bs.quit)
	return nil
}

func (bs *BaseService) IsRunning() bool {
	return atomic.LoadUint32(&bs.started) == 1 && atomic.LoadUint32(&bs.stopped) == 0
}

func (bs *BaseService) Wait() {
	<-bs.quit
}

func (bs *BaseService) String() string {
	return bs.name
}
