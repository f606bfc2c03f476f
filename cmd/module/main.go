package main

import (
	"markerlocator"
	"markerlocator/models"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: generic.API, Model: markerlocator.MarkerExtractor},
		resource.APIModel{API: sensor.API, Model: models.MarkerLocator},
		resource.APIModel{API: camera.API, Model: models.MarkerCamera},
	)
}
