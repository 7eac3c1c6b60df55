package effects

import (
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/media"
	"github.com/pion/rtp"
)

// Processor transforms the packets of one derived track.
type Processor interface {
	// Process returns the packet to forward, or nil to drop it.
	Process(packet *rtp.Packet) *rtp.Packet
	Close() error
}

// ProcessorFactory creates a Processor for the given input track.
type ProcessorFactory func(input media.Track) (Processor, error)

var (
	processorsMu sync.RWMutex
	processors   = map[string]ProcessorFactory{}
)

var ErrUnknownProcessor = errors.New("unknown processor")

// RegisterProcessor makes a processor selectable by name.
func RegisterProcessor(name string, factory ProcessorFactory) {
	processorsMu.Lock()
	processors[name] = factory
	processorsMu.Unlock()
}

// LookupProcessor returns the factory registered under name.
func LookupProcessor(name string) (ProcessorFactory, error) {
	processorsMu.RLock()
	defer processorsMu.RUnlock()

	factory, ok := processors[name]
	if !ok {
		return nil, errors.Annotatef(ErrUnknownProcessor, "%q", name)
	}

	return factory, nil
}

// ProcessorNames lists the registered processors.
func ProcessorNames() []string {
	processorsMu.RLock()
	defer processorsMu.RUnlock()

	names := make([]string, 0, len(processors))

	for name := range processors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ProcessorRelay is the only processor built in. It does not blur: blur
// derived tracks carry the input unchanged until a real pixel transform is
// registered under another name and selected with effects.blur.
const ProcessorRelay = "relay"

func init() {
	RegisterProcessor(ProcessorRelay, NewRelay)
}

// relay forwards copies of the packets unchanged. It is a stand-in for an
// external pixel transform plugged in with RegisterProcessor.
type relay struct{}

func NewRelay(media.Track) (Processor, error) {
	return relay{}, nil
}

func (relay) Process(packet *rtp.Packet) *rtp.Packet {
	out := *packet

	return &out
}

func (relay) Close() error {
	return nil
}
