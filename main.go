package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/edaniels/golog"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"gopkg.in/yaml.v2"

	"github.com/RoiRomem/KoiUtils/canbus"
	"github.com/RoiRomem/KoiUtils/dashboard"
	"github.com/RoiRomem/KoiUtils/encoder"
	"github.com/RoiRomem/KoiUtils/spark"
)

type EnvConfig struct {
	JWT_ISSUER string `env:"KOI_JWT_ISSUER" envDefault:"DEV"`
	JWT_SECRET string `env:"KOI_JWT_SECRET" envDefault:"koiutils-dev-secret"`
	DEBUG      bool   `env:"DEBUG" envDefault:"0"`
	DB_PATH    string `env:"KOI_DB" envDefault:""`
	CONFIG     string `env:"KOI_CONFIG" envDefault:"./robot.yaml"`

	DB    *storm.DB
	Table *dashboard.Table
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	env.Parse(ENV)
}

func openDb(dbFile string) (*storm.DB, error) {
	dir := filepath.Dir(dbFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		os.Mkdir(dir, 0755)
	}

	return storm.Open(dbFile)
}

func main() {
	simulated := flag.Bool("sim", false, "Run against simulated devices instead of the CAN bus")
	port := flag.String("port", "0.0.0.0:5800", "Specify the ip:port to listen on")
	period := flag.Duration("period", 20*time.Millisecond, "Control cycle period")
	flag.Parse()

	logger := golog.NewDevelopmentLogger("koiutils")

	// setup database
	dbFile := ENV.DB_PATH
	if dbFile == "" {
		dbFile, _ = filepath.Abs("./tmp/koiutils.db")
	}
	db, err := openDb(dbFile)
	if err != nil {
		panic(err)
	}
	ENV.DB = db
	defer db.Close()

	// the dashboard table shares the db so overrides survive restarts
	table, err := dashboard.NewTable(db)
	if err != nil {
		panic(err)
	}
	ENV.Table = table

	// load the robot wiring
	yamlFile, err := ioutil.ReadFile(ENV.CONFIG)
	if err != nil {
		panic(fmt.Sprintf("unable to read robot config: %v", err))
	}
	var config RobotConfig
	if err = yaml.Unmarshal(yamlFile, &config); err != nil {
		panic(fmt.Sprintf("unable to unmarshal robot config: %v", err))
	}

	var bus canbus.CANBusInterface
	if *simulated {
		bus = simulatedBus(config, *period)
	} else {
		bus, err = canbus.NewCANBus(config.Bus)
		if err != nil {
			panic(fmt.Sprintf("unable to open %s: %v", config.Bus, err))
		}
	}

	motors, err := buildMotors(bus, config, table, logger)
	if err != nil {
		panic(err)
	}
	set := NewMotorSet(motors)

	// drive every motor's periodic maintenance at the control cycle rate
	go func() {
		ticker := time.NewTicker(*period)
		defer ticker.Stop()
		for range ticker.C {
			for name, err := range set.Periodic() {
				logger.Errorf("%s periodic: %v", name, err)
			}
		}
	}()

	broadcaster := NewBroadcaster(table, logger)
	go broadcaster.Run()

	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Post("/api/login", Login)
	r.Group(func(r chi.Router) {
		r.Use(ValidateJWT)
		r.Post("/api/refresh", JWTRefresh)
		r.Get("/api/dashboard", ListEntries)
		r.Put("/api/dashboard/{key}", SetOverride)
		r.Delete("/api/dashboard/{key}", ClearOverride)
		r.Get("/ws", broadcaster.StreamHandler)
	})

	go func() {
		if err := http.ListenAndServe(*port, r); err != nil {
			logger.Errorf("http: %v", err)
		}
	}()

	runShell(set)
}

// simulatedBus builds a SimBus with one simulated controller and encoder per
// configured motor, stepping the plant at the control cycle rate.
func simulatedBus(config RobotConfig, period time.Duration) *canbus.SimBus {
	bus := canbus.NewSimBus()

	nodes := make([]*spark.SimNode, 0, len(config.Motors))
	encs := make([]*encoder.SimEncoder, 0, len(config.Motors))
	for _, mc := range config.Motors {
		node := spark.NewSimNode(mc.Controller, "24.0.1")
		bus.Attach(node)
		nodes = append(nodes, node)

		enc := encoder.NewSimEncoder(mc.Encoder)
		enc.SetAngle(mc.Offset) // park the shaft at its zero
		bus.Attach(enc)
		encs = append(encs, enc)
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for range ticker.C {
			for _, node := range nodes {
				node.Step(bus)
			}
			for _, enc := range encs {
				enc.Emit(bus)
			}
		}
	}()

	return bus
}
