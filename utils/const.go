package utils

const (
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 1024

	DefaultSeed              = 0
	DefaultPipelineCacheFile = "pipeline_cache_data.bin"

	// LightStep is how many lights one key press adds or removes.
	LightStep = 1000
)
