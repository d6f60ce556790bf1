package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for sandbox observability spans and metrics.
var (
	AttrContainerID   = attribute.Key("sandbox.container_id")
	AttrImage         = attribute.Key("sandbox.image")
	AttrWorkingDir    = attribute.Key("sandbox.working_dir")
	AttrExpireSeconds = attribute.Key("sandbox.expire_seconds")

	AttrCommand  = attribute.Key("sandbox.command")
	AttrExitCode = attribute.Key("sandbox.exit_code")
	AttrStatus   = attribute.Key("sandbox.status")
)
