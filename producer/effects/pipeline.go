// Package effects derives processed tracks from captured ones and remembers
// which capture every derived track came from.
package effects

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/metrics"
	"github.com/pion/rtp"
)

var ErrEffectInitFailed = errors.New("effect init failed")

type binding struct {
	input       media.Track
	output      *media.StaticTrack
	processor   Processor
	unsubscribe func()
}

// Pipeline owns every EffectBinding. A binding lives from Apply until its
// output track or the binding itself is stopped.
type Pipeline struct {
	log     logger.Logger
	factory ProcessorFactory

	mu       sync.Mutex
	bindings map[string]*binding
}

func NewPipeline(log logger.Logger, factory ProcessorFactory) *Pipeline {
	return &Pipeline{
		log:      log.WithNamespaceAppended("effects"),
		factory:  factory,
		bindings: map[string]*binding{},
	}
}

// Apply derives a processed track from input. The derived track takes over
// ownership of input: stopping it stops input too. Applying to a track that
// already is an output returns it unchanged.
func (p *Pipeline) Apply(ctx context.Context, input media.Track) (media.Track, error) {
	if p.IsOutput(input.ID()) {
		return input, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	source, ok := input.(media.PacketSource)
	if !ok {
		return nil, errors.Annotatef(ErrEffectInitFailed, "track %s does not expose packets", input.ID())
	}

	processor, err := p.factory(input)
	if err != nil {
		return nil, errors.Wrapf(err, ErrEffectInitFailed, "create processor for %s: %v", input.ID(), err)
	}

	settings := input.Settings()
	// A derived track does not report the device it originates from, use
	// LookupInput to find it.
	settings.DeviceID = ""
	settings.GroupID = ""

	params := media.StaticTrackParams{
		ID:        uuid.New().String(),
		Label:     input.Label(),
		Codec:     input.Codec(),
		Settings:  settings,
		Constrain: input.ApplyConstraints,
	}

	if requester, ok := input.(media.KeyframeRequester); ok {
		params.Keyframe = requester.RequestKeyframe
	}

	output, err := media.NewStaticTrack(params)
	if err != nil {
		_ = processor.Close()

		return nil, errors.Wrapf(err, ErrEffectInitFailed, "create output for %s: %v", input.ID(), err)
	}

	b := &binding{
		input:     input,
		output:    output,
		processor: processor,
	}

	p.mu.Lock()
	p.bindings[output.ID()] = b
	p.mu.Unlock()

	b.unsubscribe = source.OnPacket(func(packet *rtp.Packet) {
		if out := processor.Process(packet); out != nil {
			_ = output.WriteRTP(out)
		}
	})

	output.OnStop(func() {
		p.Stop(output.ID())
	})

	metrics.EffectBindings.Inc()

	p.log.Debug("Effect applied", logger.Ctx{
		"input_id":  input.ID(),
		"output_id": output.ID(),
	})

	return output, nil
}

// Stop tears down the binding whose output track has the given id and
// stops both tracks. It is a no-op when there is no such binding.
func (p *Pipeline) Stop(id string) {
	p.mu.Lock()
	b, ok := p.bindings[id]
	delete(p.bindings, id)
	p.mu.Unlock()

	if !ok {
		return
	}

	b.unsubscribe()

	if err := b.processor.Close(); err != nil {
		p.log.Error("Close processor", errors.Trace(err), logger.Ctx{
			"output_id": id,
		})
	}

	b.input.Stop()
	b.output.Stop()

	metrics.EffectBindings.Dec()

	p.log.Debug("Effect stopped", logger.Ctx{
		"input_id":  b.input.ID(),
		"output_id": id,
	})
}

// LookupInput returns the capture a derived track was created from, or nil
// when id is not a derived track.
func (p *Pipeline) LookupInput(id string) media.Track {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.bindings[id]; ok {
		return b.input
	}

	return nil
}

// IsOutput returns true when id identifies a derived track.
func (p *Pipeline) IsOutput(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.bindings[id]

	return ok
}

// Origin returns the input track when track is derived, otherwise track
// itself.
func (p *Pipeline) Origin(track media.Track) media.Track {
	if input := p.LookupInput(track.ID()); input != nil {
		return input
	}

	return track
}

// Len returns the number of live bindings.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.bindings)
}

// Close stops every binding.
func (p *Pipeline) Close() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.bindings))

	for id := range p.bindings {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Stop(id)
	}
}
