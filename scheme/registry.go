package scheme

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/layer-3/siwa/core"
)

// Registry maps scheme tags to codecs. Built-in schemes are always present;
// extension schemes are loaded on first use. A Registry is safe for
// concurrent use.
type Registry struct {
	builtin    map[Scheme]Codec
	extensions map[Scheme]*extension
}

type extension struct {
	once  sync.Once
	load  Loader
	codec Codec
	err   error
}

func (e *extension) resolve(tag Scheme) (Codec, error) {
	e.once.Do(func() {
		if e.load == nil {
			e.err = fmt.Errorf("%w: %s: no implementation installed", core.ErrUnsupportedScheme, tag)
			return
		}
		codec, err := e.load()
		if err == nil && codec == nil {
			err = errors.New("loader returned no codec")
		}
		if err != nil {
			e.err = fmt.Errorf("%w: %s: %v", core.ErrUnsupportedScheme, tag, err)
			return
		}
		e.codec = codec
	})
	return e.codec, e.err
}

// Option configures a Registry.
type Option func(*Registry)

// WithExtension installs the loader for an extension scheme. Tags outside the
// extension set are ignored.
func WithExtension(tag Scheme, load Loader) Option {
	return func(r *Registry) {
		if ext, ok := r.extensions[tag]; ok {
			ext.load = load
		}
	}
}

// NewRegistry creates a registry with all built-in schemes.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		builtin: map[Scheme]Codec{
			Ed25519:      ed25519Codec{},
			MultiEd25519: multiEd25519Codec{},
			SingleKey:    singleKeyCodec{},
			MultiKey:     multiKeyCodec{},
		},
		extensions: make(map[Scheme]*extension, len(extensions)),
	}
	for _, tag := range extensions {
		r.extensions[tag] = &extension{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) codec(tag Scheme) (Codec, error) {
	if c, ok := r.builtin[tag]; ok {
		return c, nil
	}
	if ext, ok := r.extensions[tag]; ok {
		return ext.resolve(tag)
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownScheme, tag)
}

// Supported reports whether tag can be decoded and verified. It may trigger
// the extension load.
func (r *Registry) Supported(tag Scheme) bool {
	_, err := r.codec(tag)
	return err == nil
}

// DecodePublicKey decodes the wire form of a public key of the given scheme.
func (r *Registry) DecodePublicKey(tag Scheme, b []byte) (PublicKey, error) {
	c, err := r.codec(tag)
	if err != nil {
		return nil, err
	}
	return c.DecodePublicKey(b)
}

// DecodeSignature decodes the wire form of a signature of the given scheme.
func (r *Registry) DecodeSignature(tag Scheme, b []byte) (Signature, error) {
	c, err := r.codec(tag)
	if err != nil {
		return nil, err
	}
	return c.DecodeSignature(b)
}

// SchemeOf returns the scheme a key belongs to. Keys reporting a tag outside
// the recognized set fail with ErrUnknownScheme.
func (r *Registry) SchemeOf(pk PublicKey) (Scheme, error) {
	if pk == nil {
		return "", fmt.Errorf("%w: no public key", core.ErrUnknownScheme)
	}
	tag := pk.Scheme()
	if !tag.Known() {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownScheme, tag)
	}
	return tag, nil
}

// Verify checks sig over message with pk. Keys of unknown or unsupported
// schemes never verify; the reason is returned alongside false.
func (r *Registry) Verify(ctx context.Context, pk PublicKey, sig Signature, message []byte) (bool, error) {
	if pk == nil || sig == nil {
		return false, nil
	}
	if _, err := r.codec(pk.Scheme()); err != nil {
		return false, err
	}
	if sig.Scheme() != pk.Scheme() {
		return false, nil
	}
	return pk.Verify(ctx, message, sig)
}
