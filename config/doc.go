/*
Package config loads the settings of the rados tool.

Sources are applied in increasing precedence:

	Default()              compiled-in values
	  LoadFromFile(path)   YAML, keys present in the file only
	    LoadFromEnv()      RADOS_* variables
	      command line     flags set explicitly by the user

Validate should run after the last source. Logger builds the zap logger the
logging section describes.

Environment variables:

	RADOS_CLUSTER, RADOS_USER, RADOS_CONF, RADOS_POOL
	RADOS_SIM_STORE, RADOS_SIM_FSID, RADOS_SIM_LATENCY, RADOS_SIM_SAFE_DELAY
	RADOS_LOG_LEVEL, RADOS_LOG_DEVELOPMENT
	RADOS_METRICS_ENABLED, RADOS_METRICS_LISTEN
	RADOS_BUFFER_INITIAL, RADOS_BUFFER_MAX
*/
package config
