// Package container wires the application together with samber/do. Each
// XxxPackage function registers one concern's providers on the injector.
package container

// Options holds the runtime configuration, populated from CLI flags and
// environment by humacli.
type Options struct {
	Port               int    `default:"8888"                                      help:"Port to listen on"                         short:"p"`
	DatabaseURL        string `default:"postgres://localhost:5432/refhound"        help:"Postgres connection string"`
	RedisAddr          string `default:"localhost:6379"                            help:"Redis server address"                      short:"r"`
	CohereAPIKey       string `help:"Cohere API key used for extraction"           name:"cohere-api-key"`
	CohereModel        string `default:"command-r"                                 help:"Cohere model used for extraction"`
	Channel            string `default:"referralcodes"                             help:"Forum channel to harvest"`
	FeedBaseURL        string `default:"https://www.reddit.com"                    help:"Base URL of the forum listing API"`
	MaxPages           int    `default:"3"                                         help:"Maximum listing pages per harvest"`
	PageSize           int    `default:"25"                                        help:"Posts per listing page"`
	BatchSize          int    `default:"10"                                        help:"Posts per extraction batch"`
	RequestsPerMinute  int    `default:"15"                                        help:"Extraction calls per minute budget"`
	SweepSpec          string `default:"@hourly"                                   help:"Cron spec for the expiry sweeper"`
	CacheTTLMinutes    int    `default:"60"                                        help:"Redis record cache TTL in minutes"`
	RateLimitPerMinute int    `default:"120"                                       help:"Inbound API requests per minute per client"`
	LogFormat          string `default:"console"                                   help:"Log format: console or json"`
}
