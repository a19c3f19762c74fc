//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/quartz"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/infra"
	"github.com/eliteGoblin/focusd/app_usage/internal/policy"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
	"github.com/eliteGoblin/focusd/app_usage/test/fixtures"
)

const (
	pidEditor  = 100
	pidBrowser = 200
)

var _ = Describe("Usage Engine", func() {
	var (
		dataDir    string
		clock      *quartz.Mock
		session    *fixtures.ScriptedSession
		desktop    *fixtures.FakeDesktop
		settingsDB *infra.SettingsDB
		settings   *usecase.SettingsService
		enricher   *usecase.Enricher
		engine     *usecase.Engine
		logger     *zap.Logger
	)

	openSettings := func() {
		var err error
		settingsDB, err = infra.OpenSettings(dataDir)
		Expect(err).NotTo(HaveOccurred())
		settings = usecase.NewSettingsService(settingsDB, domain.DefaultSettings(), logger)
	}

	startEngine := func() {
		enricher = usecase.NewEnricher(
			usecase.DefaultEnricherConfig(),
			infra.NewJSONMetadataCache(dataDir, logger),
			infra.NewDesktopEntryResolverWithDirs([]string{desktop.AppDir()}, []string{desktop.DataDir()}, logger),
			infra.NewPNGIconStore(filepath.Join(dataDir, "icons")),
			logger,
		)
		var err error
		engine, err = usecase.NewEngine(usecase.DefaultEngineConfig(), usecase.EngineDeps{
			Clock:      clock,
			Foreground: session,
			Processes:  session,
			Settings:   settings,
			Ledger:     infra.NewFileLedger(dataDir, logger),
			Metadata:   infra.NewJSONMetadataCache(dataDir, logger),
			Hosts:      policy.NewHostRegistry(),
			Enricher:   enricher,
			Logger:     logger,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	// restart simulates the daemon exiting and starting again.
	restart := func() {
		enricher.Wait()
		Expect(settingsDB.Close()).To(Succeed())
		openSettings()
		startEngine()
	}

	tick := func(n int) {
		for i := 0; i < n; i++ {
			clock.Advance(time.Second).MustWait(context.Background())
			engine.Tick(context.Background())
		}
	}

	drain := func() []domain.ReminderKind {
		var out []domain.ReminderKind
		for {
			select {
			case r := <-engine.Reminders():
				out = append(out, r.Kind)
			default:
				return out
			}
		}
	}

	topFromDisk := func() []domain.ProcessUsage {
		report := usecase.NewReport(
			infra.NewFileLedger(dataDir, logger),
			infra.NewJSONMetadataCache(dataDir, logger),
			settings,
			logger,
		)
		usage, err := report.Top(0, clock.Now())
		Expect(err).NotTo(HaveOccurred())
		return usage
	}

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "appusage-integration-*")
		Expect(err).NotTo(HaveOccurred())

		logger = zap.NewNop()
		desktop = fixtures.NewFakeDesktop(filepath.Join(dataDir, "desktop"))
		Expect(desktop.Install("code", "Visual Studio Code", "vscode")).To(Succeed())

		session = fixtures.NewScriptedSession(map[int]string{
			pidEditor:  "code",
			pidBrowser: "firefox",
		})
		clock = quartz.NewMock(suiteT)
		clock.Set(time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local))

		openSettings()
	})

	AfterEach(func() {
		if enricher != nil {
			enricher.Wait()
		}
		if settingsDB != nil {
			_ = settingsDB.Close()
		}
		os.RemoveAll(dataDir)
	})

	Describe("recording usage", func() {
		It("should write per-application time and metadata to disk", func() {
			startEngine()

			session.Focus(pidEditor)
			tick(10)
			session.Focus(pidBrowser)
			tick(5)
			session.Blank()
			tick(1)
			enricher.Wait()

			usage := topFromDisk()
			Expect(usage).To(HaveLen(2))

			Expect(usage[0].ProcessName).To(Equal("code"))
			Expect(usage[0].UsedTime).To(Equal(10 * time.Second))
			Expect(usage[0].DisplayName).To(Equal("Visual Studio Code"))
			Expect(usage[0].IconReference).To(HavePrefix("file://"))
			Expect(filepath.Join(dataDir, "icons", "code.png")).To(BeARegularFile())

			Expect(usage[1].ProcessName).To(Equal("firefox"))
			Expect(usage[1].UsedTime).To(Equal(5 * time.Second))
			Expect(usage[1].DisplayName).To(Equal("firefox"))

			Expect(engine.GetTotalUsedTime()).To(Equal(15 * time.Second))
		})

		It("should not count time for excluded processes", func() {
			Expect(settings.Set(domain.KeyNoTimeNames, "firefox")).To(Succeed())
			startEngine()

			session.Focus(pidBrowser)
			tick(20)

			Expect(engine.GetTotalUsedTime()).To(BeZero())
			Expect(topFromDisk()).To(BeEmpty())
		})
	})

	Describe("restarting", func() {
		It("should keep today's totals", func() {
			startEngine()
			session.Focus(pidEditor)
			tick(10)
			session.Blank()
			tick(1)

			restart()

			Expect(engine.GetTotalUsedTime()).To(Equal(10 * time.Second))
			top := engine.GetTopProcesses(5)
			Expect(top).To(HaveLen(1))
			Expect(top[0].UsedTime).To(Equal(10 * time.Second))
		})

		It("should remind again when the daily limit was already reached", func() {
			Expect(settings.Set(domain.KeyTotalUsedRemindTime, "1m")).To(Succeed())
			startEngine()

			session.Focus(pidEditor)
			tick(60)
			Expect(drain()).To(Equal([]domain.ReminderKind{domain.ReminderTotal}))
			tick(30)
			Expect(drain()).To(BeEmpty())

			restart()
			Expect(drain()).To(Equal([]domain.ReminderKind{domain.ReminderTotal}))
		})
	})

	Describe("day rollover", func() {
		It("should start the new day from midnight", func() {
			clock.Set(time.Date(2026, 3, 10, 23, 59, 50, 0, time.Local))
			startEngine()

			session.Focus(pidEditor)
			tick(20)
			Expect(engine.GetTotalUsedTime()).To(Equal(11 * time.Second))

			session.Blank()
			tick(1)
			usage := topFromDisk()
			Expect(usage).To(HaveLen(1))
			Expect(usage[0].UsedTime).To(Equal(11 * time.Second))

			counters, sameDay, err := settings.LoadCounters("2026-03-11")
			Expect(err).NotTo(HaveOccurred())
			Expect(sameDay).To(BeTrue())
			Expect(counters.TotalUsedTime).To(Equal(11 * time.Second))
		})

		It("should discard yesterday's ledger on startup", func() {
			startEngine()
			session.Focus(pidEditor)
			tick(10)
			session.Blank()
			tick(1)
			Expect(topFromDisk()).To(HaveLen(1))

			clock.Set(time.Date(2026, 3, 11, 8, 0, 0, 0, time.Local))
			restart()

			Expect(engine.GetTotalUsedTime()).To(BeZero())
			Expect(topFromDisk()).To(BeEmpty())
		})
	})

	Describe("end using time", func() {
		It("should remind once and clear the alarm", func() {
			startEngine()
			Expect(engine.SetEndUsingTime(time.Date(2026, 3, 10, 9, 5, 0, 0, time.Local))).To(Succeed())

			session.Focus(pidEditor)
			tick(1)
			Expect(drain()).To(BeEmpty())

			clock.Advance(5 * time.Minute).MustWait(context.Background())
			engine.Tick(context.Background())
			tick(1)

			tick(5)

			var fired int
			for _, kind := range drain() {
				if kind == domain.ReminderEndUsing {
					fired++
				}
			}
			Expect(fired).To(Equal(1))

			stored, err := settings.EndUsingTime(clock.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsZero()).To(BeTrue())
		})

		It("should be readable by the CLI settings listing", func() {
			_, err := settings.SetEndUsingTime(time.Date(2026, 3, 10, 18, 30, 0, 0, time.Local), clock.Now())
			Expect(err).NotTo(HaveOccurred())

			entries, err := settings.List()
			Expect(err).NotTo(HaveOccurred())
			var found bool
			for _, e := range entries {
				if e.Key == domain.KeyEndUsingTime {
					found = strings.HasPrefix(e.Value, "18:30")
				}
			}
			Expect(found).To(BeTrue())
		})
	})
})
