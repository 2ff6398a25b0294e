package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"pawn-estimator/config"
)

var configEnvVars = []string{
	"PAWN_CONFIG", "PAWN_EBAY_APP_ID", "PAWN_QUICK_TTL", "PAWN_SOURCES",
	"PAWN_HISTORY_SINK", "PAWN_PAWN_RATE", "PAWN_KAFKA_BROKERS", "PAWN_PRIMARY_PRIORITY",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the built-in values apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.QuickTTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.FullTTL, convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.ReferenceTTL, convey.ShouldEqual, 24*time.Hour)
				convey.So(cfg.EbayDailyQuota, convey.ShouldEqual, 5000)
				convey.So(cfg.PrimaryPriority, convey.ShouldResemble, []string{"ebay", "ebay-web"})
				convey.So(cfg.HistorySink, convey.ShouldEqual, config.SinkNone)
			})
		})

		convey.Convey("When environment variables are set", func() {
			_ = os.Setenv("PAWN_EBAY_APP_ID", "app-1")
			_ = os.Setenv("PAWN_QUICK_TTL", "90s")
			_ = os.Setenv("PAWN_SOURCES", "ebay,amazon")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.EbayAppID, convey.ShouldEqual, "app-1")
				convey.So(cfg.QuickTTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.SourceEnabled("amazon"), convey.ShouldBeTrue)
				convey.So(cfg.SourceEnabled("mercari"), convey.ShouldBeFalse)
				convey.So(cfg.Sources, convey.ShouldResemble, []string{"ebay", "amazon"})
			})
		})

		convey.Convey("When list variables have spaces and mixed case", func() {
			_ = os.Setenv("PAWN_SOURCES", " ebay-web, Amazon ,, mercari")
			_ = os.Setenv("PAWN_PRIMARY_PRIORITY", "ebay-web, ebay")
			_ = os.Setenv("PAWN_HISTORY_SINK", "kafka")
			_ = os.Setenv("PAWN_KAFKA_BROKERS", "k1:9092, k2:9092")

			cfg, err := config.Load(ctx)

			convey.Convey("Then each becomes a trimmed list", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Sources, convey.ShouldResemble, []string{"ebay-web", "amazon", "mercari"})
				convey.So(cfg.PrimaryPriority, convey.ShouldResemble, []string{"ebay-web", "ebay"})
				convey.So(cfg.KafkaBrokers, convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
				convey.So(cfg.SourceEnabled(" Amazon"), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a YAML file is named by PAWN_CONFIG", func() {
			path := filepath.Join(t.TempDir(), "pawn.yaml")
			yamlContent := `
amazon_associate_tag: "shop-20"
full_ttl: 30m
pawn_rate: 0.35
history_sink: csv
`
			convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("PAWN_CONFIG", path)
			_ = os.Setenv("PAWN_PAWN_RATE", "0.25")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values load and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.AmazonAssociateTag, convey.ShouldEqual, "shop-20")
				convey.So(cfg.FullTTL, convey.ShouldEqual, 30*time.Minute)
				convey.So(cfg.HistorySink, convey.ShouldEqual, config.SinkCSV)
				convey.So(cfg.PawnRate, convey.ShouldEqual, 0.25)
			})
		})

		convey.Convey("When the history sink is unknown", func() {
			_ = os.Setenv("PAWN_HISTORY_SINK", "s3")

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "history_sink")
			})
		})

		convey.Convey("When kafka is chosen without brokers", func() {
			_ = os.Setenv("PAWN_HISTORY_SINK", "kafka")

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "kafka_brokers")
			})
		})
	})
}

func TestValidatePawnRate(t *testing.T) {
	cfg := config.Default()
	cfg.PawnRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected pawn rate above 1 to be rejected")
	}
	cfg.PawnRate = 0.3
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestDSN(t *testing.T) {
	cfg := config.Default()
	want := "host=localhost port=5432 user=pawn password= dbname=pawn_db sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q; want %q", got, want)
	}
}
