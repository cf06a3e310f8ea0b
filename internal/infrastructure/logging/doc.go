// Package logging wraps uber/zap for the runtime server.
//
// Production (LOG_DEV unset) writes JSON lines; development writes colored
// console output. LOG_LEVEL picks debug, info, warn or error.
//
// Components take a named child logger:
//
//	logger := logging.NewDefault()
//	sessions := session.NewManager(factory, logger.Named("session"), recorder)
//
// Hidden commands are logged at debug level without their text.
package logging
