package conductor

// Version is the release version, overridden at link time with -ldflags "-X".
var Version = "0.1.0-dev"
