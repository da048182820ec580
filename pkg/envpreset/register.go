package envpreset

import "github.com/sw33tLie/jsenv/pkg/registry"

// Register installs b as the "env" preset of reg. Preset options are decoded
// with DecodeOptions on every expansion.
func Register(reg *registry.Registry, b *Builder) *registry.Descriptor {
	return reg.RegisterPreset(PresetName, func(opts map[string]interface{}) ([]registry.Activation, error) {
		o, err := DecodeOptions(opts)
		if err != nil {
			return nil, err
		}
		res, err := b.Build(o)
		if err != nil {
			return nil, err
		}
		return res.Activations, nil
	})
}
