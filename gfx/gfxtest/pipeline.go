package gfxtest

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Pipeline is a recorded pipeline.
type Pipeline struct {
	rec       *Recorder
	desc      gfx.PipelineDesc
	statics   map[string]gfx.Resource
	bound     bool
	Destroyed bool
}

func (p *Pipeline) Desc() gfx.PipelineDesc { return p.desc }

// Static returns the resource bound to the static variable name.
func (p *Pipeline) Static(name string) gfx.Resource {
	return p.statics[name]
}

func (p *Pipeline) SetStatic(name string, res gfx.Resource) error {
	if err := p.rec.record("SetStatic", name, res); err != nil {
		return err
	}
	v, err := p.variable(name, gfx.VariableStatic, res)
	if err != nil {
		return err
	}
	if p.bound {
		return errors.Newf("pipeline %q: static variable %q set after a resource binding was created", p.desc.Name, v.Name)
	}
	p.statics[name] = res
	return nil
}

func (p *Pipeline) CreateResourceBinding() (gfx.ResourceBinding, error) {
	if err := p.rec.record("CreateResourceBinding", p.desc.Name, p); err != nil {
		return nil, err
	}
	p.bound = true
	b := &ResourceBinding{
		rec:      p.rec,
		pipeline: p,
		Vars:     map[string]gfx.Resource{},
	}
	for name, res := range p.statics {
		b.Vars[name] = res
	}
	return b, nil
}

func (p *Pipeline) Destroy() {
	p.rec.record("DestroyPipeline", p.desc.Name, p)
	p.Destroyed = true
}

func (p *Pipeline) variable(name string, typ gfx.VariableType, res gfx.Resource) (gfx.ResourceVariable, error) {
	v, ok := p.desc.Resources.Variable(name)
	if !ok {
		return v, errors.Wrapf(gfx.ErrNotFound, "pipeline %q: variable %q", p.desc.Name, name)
	}
	if v.Type != typ {
		return v, errors.Newf("pipeline %q: variable %q has the wrong type", p.desc.Name, name)
	}
	switch v.Kind {
	case gfx.ResourceConstantBuffer:
		if _, ok := res.(gfx.Buffer); !ok {
			return v, errors.Newf("pipeline %q: variable %q needs a buffer", p.desc.Name, name)
		}
	case gfx.ResourceTexture, gfx.ResourceInputAttachment:
		view, ok := res.(gfx.TextureView)
		if !ok || view.Kind() != gfx.ViewShaderResource {
			return v, errors.Newf("pipeline %q: variable %q needs a shader resource view", p.desc.Name, name)
		}
	}
	return v, nil
}

// ResourceBinding is a recorded resource binding. Vars holds every
// resource bound, static and mutable.
type ResourceBinding struct {
	rec       *Recorder
	pipeline  *Pipeline
	Vars      map[string]gfx.Resource
	Destroyed bool
}

// Pipeline returns the pipeline b was created from.
func (b *ResourceBinding) Pipeline() *Pipeline {
	return b.pipeline
}

func (b *ResourceBinding) Set(name string, res gfx.Resource) error {
	if err := b.rec.record("SetVariable", name, res); err != nil {
		return err
	}
	if _, err := b.pipeline.variable(name, gfx.VariableMutable, res); err != nil {
		return err
	}
	b.Vars[name] = res
	return nil
}

func (b *ResourceBinding) Destroy() {
	b.rec.record("DestroyResourceBinding", b.pipeline.desc.Name, b)
	b.Destroyed = true
}

func (b *ResourceBinding) complete() error {
	for _, v := range b.pipeline.desc.Resources.Variables {
		if _, ok := b.Vars[v.Name]; !ok {
			return errors.Newf("pipeline %q: variable %q is not bound", b.pipeline.desc.Name, v.Name)
		}
	}
	return nil
}
