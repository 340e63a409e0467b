package schema

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces primary key values for fields tagged generator:<name>.
type IDGenerator interface {
	Generate() (any, error)
	Type() string
}

// UUIDGenerator generates random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate uuid: %w", err)
	}
	return id, nil
}

func (UUIDGenerator) Type() string { return "uuid" }

// ULIDGenerator generates monotonic ULIDs.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}
	return id, nil
}

func (g *ULIDGenerator) Type() string { return "ulid" }

// SnowflakeGenerator generates 63-bit time ordered integers:
// 41 bits of milliseconds since 2023-01-01, 10 bits machine, 12 bits sequence.
type SnowflakeGenerator struct {
	mu        sync.Mutex
	machineID uint64
	sequence  uint64
	lastTime  uint64
	epoch     uint64
}

func NewSnowflakeGenerator(machineID uint64) *SnowflakeGenerator {
	return &SnowflakeGenerator{
		machineID: machineID & 0x3FF,
		epoch:     uint64(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()),
	}
}

func (g *SnowflakeGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := uint64(time.Now().UnixMilli())
	if now < g.lastTime {
		return nil, fmt.Errorf("generate snowflake: clock moved backwards by %dms", g.lastTime-now)
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & 0xFFF
		if g.sequence == 0 {
			for now <= g.lastTime {
				now = uint64(time.Now().UnixMilli())
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return int64(((now - g.epoch) << 22) | (g.machineID << 12) | g.sequence), nil
}

func (g *SnowflakeGenerator) Type() string { return "snowflake" }

// NanoIDGenerator generates URL-safe random strings.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

const nanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func NewNanoIDGenerator(size int) *NanoIDGenerator {
	if size <= 0 {
		size = 21
	}
	return &NanoIDGenerator{size: size, alphabet: nanoIDAlphabet}
}

func (g *NanoIDGenerator) Generate() (any, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate nanoid: %w", err)
	}
	// 64 symbols, so the low six bits index without bias.
	for i := range buf {
		buf[i] = g.alphabet[buf[i]&63]
	}
	return string(buf), nil
}

func (g *NanoIDGenerator) Type() string { return "nanoid" }

// GeneratorRegistry maps generator names to implementations.
type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[string]IDGenerator
}

// NewGeneratorRegistry returns an empty registry.
func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{generators: make(map[string]IDGenerator)}
}

// DefaultGenerators returns a registry holding uuid, ulid, snowflake and nanoid.
func DefaultGenerators() *GeneratorRegistry {
	r := NewGeneratorRegistry()
	r.Register(UUIDGenerator{})
	r.Register(NewULIDGenerator())
	r.Register(NewSnowflakeGenerator(1))
	r.Register(NewNanoIDGenerator(21))
	return r
}

func (r *GeneratorRegistry) Register(generator IDGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[generator.Type()] = generator
}

func (r *GeneratorRegistry) Get(name string) (IDGenerator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[name]
	return gen, ok
}

// generatedValue adapts a generated ID to the field type. UUIDs and ULIDs
// go into string fields as their canonical text form.
func generatedValue(id any, target reflect.Type) any {
	if target.Kind() != reflect.String {
		return id
	}
	if s, ok := id.(fmt.Stringer); ok {
		return s.String()
	}
	return id
}
