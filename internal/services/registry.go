package services

import (
	"github.com/fyrsmithlabs/orbd/internal/adaptation"
	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/learning"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// Registry provides access to all orbd services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Bus() *event.Bus
	Detector() *pattern.Detector
	Generator() *insight.Generator
	Learning() learning.Store
	Workflow() *learning.Workflow
	Engine() *adaptation.Engine
}

// Options configures the registry with service instances.
type Options struct {
	Bus       *event.Bus
	Detector  *pattern.Detector
	Generator *insight.Generator
	Learning  learning.Store
	Workflow  *learning.Workflow
	Engine    *adaptation.Engine
}

// registry is the concrete implementation of Registry.
type registry struct {
	bus       *event.Bus
	detector  *pattern.Detector
	generator *insight.Generator
	learning  learning.Store
	workflow  *learning.Workflow
	engine    *adaptation.Engine
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		bus:       opts.Bus,
		detector:  opts.Detector,
		generator: opts.Generator,
		learning:  opts.Learning,
		workflow:  opts.Workflow,
		engine:    opts.Engine,
	}
}

func (r *registry) Bus() *event.Bus               { return r.bus }
func (r *registry) Detector() *pattern.Detector   { return r.detector }
func (r *registry) Generator() *insight.Generator { return r.generator }
func (r *registry) Learning() learning.Store      { return r.learning }
func (r *registry) Workflow() *learning.Workflow  { return r.workflow }
func (r *registry) Engine() *adaptation.Engine    { return r.engine }
