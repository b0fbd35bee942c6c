// Package dispatch invokes the module contract and isolates module failures:
// any error or panic becomes a logged, per-module outcome and never escapes
// into the proposal pass.
package dispatch

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/kingrea/overview/internal/logbook"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
)

// Operation names one call of the module contract.
type Operation string

const (
	OpDescription  Operation = "Description"
	OpMakeProposal Operation = "MakeProposal"
	OpAskUser      Operation = "AskUser"
	OpWrite        Operation = "Write"
	OpExport       Operation = "Export"
)

// ModuleError wraps a failure raised by a module.
type ModuleError struct {
	Module    string
	Operation Operation
	Cause     error
	Panicked  bool
}

func (e *ModuleError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("dispatch: %s.%s panicked: %v", e.Module, e.Operation, e.Cause)
	}
	return fmt.Sprintf("dispatch: %s.%s: %v", e.Module, e.Operation, e.Cause)
}

func (e *ModuleError) Unwrap() error {
	return e.Cause
}

// Dispatcher calls module operations synchronously. No timeout is imposed.
type Dispatcher struct {
	logbook *logbook.Logbook
}

// New returns a dispatcher logging failures to lb (nil discards).
func New(lb *logbook.Logbook) *Dispatcher {
	return &Dispatcher{logbook: lb}
}

// Describe queries the module's Description.
func (d *Dispatcher) Describe(ctx *module.Context, id string, m module.Module) (module.Description, error) {
	var desc module.Description
	err := d.guard(id, OpDescription, func() error {
		var callErr error
		desc, callErr = m.Description(ctx)
		return callErr
	})
	if err != nil {
		return module.Description{}, err
	}
	return desc, nil
}

// Propose runs MakeProposal and normalizes the result. Failures are turned
// into a fatal result for this module only.
func (d *Dispatcher) Propose(ctx *module.Context, id string, m module.Module, req module.ProposalRequest) proposal.Result {
	var prop module.Proposal
	err := d.guard(id, OpMakeProposal, func() error {
		var callErr error
		prop, callErr = m.MakeProposal(ctx, req)
		return callErr
	})
	if err != nil {
		return Failed(id, err)
	}
	return proposal.Result{ModuleID: id, Proposal: normalize(id, prop)}
}

// Ask runs AskUser. A failure is returned so the caller can record a fatal
// result for the module.
func (d *Dispatcher) Ask(ctx *module.Context, id string, m module.Module, req module.AskRequest) (module.AskResult, error) {
	var res module.AskResult
	err := d.guard(id, OpAskUser, func() error {
		var callErr error
		res, callErr = m.AskUser(ctx, req)
		return callErr
	})
	if err != nil {
		return module.AskResult{Sequence: module.SequenceCancel}, err
	}
	if res.Sequence == "" {
		res.Sequence = module.SequenceNext
	}
	return res, nil
}

// Write commits the module settings. Modules that do not implement
// module.Writer succeed trivially.
func (d *Dispatcher) Write(ctx *module.Context, id string, m module.Module) (module.WriteResult, error) {
	writer, ok := m.(module.Writer)
	if !ok {
		return module.WriteResult{}, nil
	}
	var res module.WriteResult
	err := d.guard(id, OpWrite, func() error {
		var callErr error
		res, callErr = writer.Write(ctx)
		return callErr
	})
	if err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, err
	}
	return res, nil
}

// Export collects the module's exported configuration. ok is false when the
// module does not implement module.Exporter.
func (d *Dispatcher) Export(ctx *module.Context, id string, m module.Module) (data map[string]any, ok bool, err error) {
	exporter, ok := m.(module.Exporter)
	if !ok {
		return nil, false, nil
	}
	err = d.guard(id, OpExport, func() error {
		var callErr error
		data, callErr = exporter.Export(ctx)
		return callErr
	})
	return data, true, err
}

// Failed builds the synthetic fatal result used for failing modules.
func Failed(id string, err error) proposal.Result {
	return proposal.Result{
		ModuleID: id,
		Proposal: module.Proposal{
			Warning:      fmt.Sprintf("%s failed: %v", id, unwrapModuleError(err)),
			WarningLevel: module.LevelFatal,
		},
		Failure: err,
	}
}

func (d *Dispatcher) guard(id string, op Operation, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ModuleError{Module: id, Operation: op, Cause: fmt.Errorf("%v", r), Panicked: true}
			d.logbook.Error("%v\n%s", err, debug.Stack())
		}
	}()
	if callErr := fn(); callErr != nil {
		err = &ModuleError{Module: id, Operation: op, Cause: callErr}
		d.logbook.Error("%v", err)
	}
	return err
}

func normalize(id string, prop module.Proposal) module.Proposal {
	if prop.WarningLevel < module.LevelNone {
		prop.WarningLevel = module.LevelNone
	}
	if prop.WarningLevel > module.LevelFatal {
		prop.WarningLevel = module.LevelFatal
	}
	if strings.TrimSpace(prop.Preformatted) != "" {
		prop.Raw = nil
	}
	if prop.WarningLevel.Blocking() && strings.TrimSpace(prop.Warning) == "" {
		prop.Warning = fmt.Sprintf("%s reported a %s problem without details", id, prop.WarningLevel)
	}
	if len(prop.Links) > 0 {
		links := make([]string, 0, len(prop.Links))
		for _, link := range prop.Links {
			if trimmed := strings.TrimSpace(link); trimmed != "" {
				links = append(links, trimmed)
			}
		}
		prop.Links = links
	}
	return prop
}

func unwrapModuleError(err error) error {
	if me, ok := err.(*ModuleError); ok && me.Cause != nil {
		return me.Cause
	}
	return err
}
