package version

// RootCmdVersion is reported by `logcount --version`.
var RootCmdVersion = "0.3.0"

// CfgVersion is the config file layout this binary understands.
const CfgVersion = 1
