package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyIOTDBType string = "IOT_DB_TYPE"
	EnvKeyIOTDbPath string = "IOT_DB_PATH"

	EnvKeyIOTHttpHostPort string = "IOT_HTTP_HOST_PORT"
	EnvKeyIOTGrpcHostPort string = "IOT_GRPC_HOST_PORT"

	EnvKeyIOTDefaultRate  string = "IOT_DEFAULT_RATE"
	EnvKeyIOTDefaultBurst string = "IOT_DEFAULT_BURST"

	EnvKeyGeoAPIURL   string = "GEO_API_URL"
	EnvKeyGeoAPIToken string = "GEO_API_TOKEN"

	EnvKeyNotifierType      string = "NOTIFIER_TYPE"
	EnvKeyRedisAddr         string = "REDIS_ADDR"
	EnvKeyRedisPassword     string = "REDIS_PASSWORD"
	EnvKeyRedisDB           string = "REDIS_DB"
	EnvKeyRedisAlertChannel string = "REDIS_ALERT_CHANNEL"

	LoggerNameIOTCore          string = "iot_core"
	LoggerNameRestfulServer    string = "restful_server"
	LoggerNameGrpcServer       string = "grpc_server"
	LoggerNameGeo              string = "geo"
	LoggerFieldIOTCategory     string = "category"
	LoggerCategoryIOTEvent     string = "event"
	LoggerCategoryIOTLocation  string = "location"
	LoggerCategoryIOTQuery     string = "query"
	LoggerCategoryIOTNotify    string = "notify"
	LoggerCategoryIOTRateLimit string = "rate_limit"
)
