// Package common provides the logging setup and the configuration shared by the
// ekv commands.
//
// All packages log through dragonboat's logger registry
// (logger.GetLogger("persist"), ...). InitLoggers installs a factory that writes
// lines in the format
//
//	2025/01/01 12:00:00 INFO  | persist  | hydrated 3 records
//
// and sets the level of every eKV logger.
package common
