package app

import (
	"github.com/vk/voxpipe/internal/registry"
	"github.com/vk/voxpipe/modules/envvars"
	"github.com/vk/voxpipe/modules/httpclient"
	"github.com/vk/voxpipe/modules/jsonconfig"
	"github.com/vk/voxpipe/modules/print"
	"github.com/vk/voxpipe/modules/s3"
	"github.com/vk/voxpipe/modules/script"
	"github.com/vk/voxpipe/modules/socketio"
	"github.com/vk/voxpipe/modules/syntheticdata"
)

// coreModules is the set of built-in modules registered when the caller does
// not supply its own (tests inject mocks instead).
var coreModules = []registry.Module{
	&syntheticdata.Module{},
	&jsonconfig.Module{},
	&script.Module{},
	&httpclient.Module{},
	&s3.Module{},
	&socketio.Module{},
	&print.Module{},
	&envvars.Module{},
}
