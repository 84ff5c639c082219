// Package models holds the types shared by the generation core, the store and the API.
package models

import "maps"

// Parameter keys understood by the generation service.
const (
	ParamNegativePrompt = "negative_prompt"
	ParamSamplingSteps  = "samplingSteps"
	ParamCfgScale       = "cfgScale"
	ParamUpscale        = "upscale"
	ParamWidth          = "width"
	ParamHeight         = "height"
	ParamSampler        = "sampler"
	ParamModelID        = "modelId"
	ParamEnableTile     = "enableTile"

	// ParamPrompts carries the prompt text; it is merged in at submission time only.
	ParamPrompts = "prompts"
)

// GenerationConfig is an immutable set of generation options. Options that were
// never set are omitted from the request so the service default applies.
//
// The zero value is an empty config and is ready to use.
type GenerationConfig struct {
	params map[string]any
}

// GenerationOption sets one option on a config under construction.
type GenerationOption func(map[string]any)

// NewGenerationConfig builds a config from the given options.
func NewGenerationConfig(opts ...GenerationOption) GenerationConfig {
	return GenerationConfig{}.With(opts...)
}

// With returns a new config with opts applied on top of c. c is left untouched.
func (c GenerationConfig) With(opts ...GenerationOption) GenerationConfig {
	next := make(map[string]any, len(c.params)+len(opts))
	maps.Copy(next, c.params)
	for _, opt := range opts {
		opt(next)
	}
	return GenerationConfig{params: next}
}

// Get returns the value stored for key.
func (c GenerationConfig) Get(key string) (any, bool) {
	v, ok := c.params[key]
	return v, ok
}

// Len reports how many options are set.
func (c GenerationConfig) Len() int { return len(c.params) }

// Parameters returns a fresh map holding the options plus the prompt, ready to
// be sent as the task parameters. Mutating the result does not affect c.
func (c GenerationConfig) Parameters(prompt string) map[string]any {
	out := make(map[string]any, len(c.params)+1)
	maps.Copy(out, c.params)
	out[ParamPrompts] = prompt
	return out
}

// Map returns a copy of the options without the prompt.
func (c GenerationConfig) Map() map[string]any {
	out := make(map[string]any, len(c.params))
	maps.Copy(out, c.params)
	return out
}

// WithNegativePrompt sets the text the model should steer away from.
func WithNegativePrompt(s string) GenerationOption {
	return func(m map[string]any) { m[ParamNegativePrompt] = s }
}

// WithSamplingSteps sets the number of denoising steps.
func WithSamplingSteps(n int) GenerationOption {
	return func(m map[string]any) { m[ParamSamplingSteps] = n }
}

// WithCfgScale sets how closely the image follows the prompt.
func WithCfgScale(f float64) GenerationOption {
	return func(m map[string]any) { m[ParamCfgScale] = f }
}

// WithUpscale sets the upscale factor applied to the output.
func WithUpscale(f float64) GenerationOption {
	return func(m map[string]any) { m[ParamUpscale] = f }
}

// WithWidth sets the image width in pixels.
func WithWidth(px int) GenerationOption {
	return func(m map[string]any) { m[ParamWidth] = px }
}

// WithHeight sets the image height in pixels.
func WithHeight(px int) GenerationOption {
	return func(m map[string]any) { m[ParamHeight] = px }
}

// WithSampler selects the sampling algorithm by name.
func WithSampler(s string) GenerationOption {
	return func(m map[string]any) { m[ParamSampler] = s }
}

// WithModelID selects the model the task runs on.
func WithModelID(id string) GenerationOption {
	return func(m map[string]any) { m[ParamModelID] = id }
}

// WithEnableTile toggles seamless tiling.
func WithEnableTile(on bool) GenerationOption {
	return func(m map[string]any) { m[ParamEnableTile] = on }
}
