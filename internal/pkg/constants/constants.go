package constants

const (
	CtxKeyRequestID = "request_id"
	HeaderRequestID = "X-Request-ID"
)

// viper keys
const (
	ViperServerAddr        = "server.addr"
	ViperServerCORSOrigins = "server.cors_origins"

	ViperDBDriver         = "db.driver"
	ViperDBDSN            = "db.dsn"
	ViperDBMaxConns       = "db.max_conns"
	ViperDBQueryTimeout   = "db.query_timeout"
	ViperDBCallTimeout    = "db.call_timeout"
	ViperDBConnectRetries = "db.connect_retries"

	ViperResolverSingleCountryFallback = "resolver.single_country_fallback"
	ViperResolverAliases               = "resolver.aliases"

	ViperAggregationSumCodes    = "aggregation.sum_codes"
	ViperAggregationAvgCodes    = "aggregation.avg_codes"
	ViperAggregationDefaultKind = "aggregation.default_kind"
	ViperAggregationFanout      = "aggregation.fanout"

	ViperSnapshotConcurrent = "snapshot.concurrent"
	ViperSnapshotTimeout    = "snapshot.timeout"
	ViperSnapshotStateTTL   = "snapshot.state_ttl"

	ViperRedisAddr     = "redis.addr"
	ViperRedisPassword = "redis.password"
	ViperRedisDB       = "redis.db"
	ViperRedisTTL      = "redis.ttl"

	ViperLogLevel  = "log.level"
	ViperLogFormat = "log.format"
)

// metric codes with built-in meaning
const (
	MetricAvgPrice         = "avg_price"
	MetricRentalYield      = "rental_yield"
	MetricVacancyRate      = "vacancy_rate"
	MetricSalesVolume      = "sales_volume"
	MetricCrimeIndex       = "crime_index"
	MetricPopulationGrowth = "population_growth"
	MetricPlannedDevCount  = "planned_dev_count"

	MetricCountResidential = "count_residential"
	MetricCountCommercial  = "count_commercial"
	MetricCountIndustrial  = "count_industrial"
	MetricCountRetail      = "count_retail"

	MetricAvgPriceResidential = "avg_price_residential"
	MetricAvgPriceCommercial  = "avg_price_commercial"
	MetricAvgPriceIndustrial  = "avg_price_industrial"
	MetricAvgPriceRetail      = "avg_price_retail"
)

// KeyMetricCodes are inlined into area listings and details when no codes are requested.
var KeyMetricCodes = []string{MetricAvgPrice, MetricRentalYield, MetricVacancyRate}
