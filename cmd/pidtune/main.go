// pidtune — автонастройка ПИД-гейнов балансирующего робота по замкнутому
// контуру: испытания на живом объекте (или симуляторе), метрики качества
// переходного процесса, четыре алгоритма поиска.
//
// Использование:
//
//	pidtune -run -config pidtune.yml        — запуск сессии по конфигу
//	pidtune -run -sim -algorithm pso        — поиск PSO на встроенном симуляторе
//
// Во время сессии команды со stdin: p — пауза, r — продолжить, s — стоп.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/balansir/pidtune/internal/config"
	"github.com/balansir/pidtune/internal/logger"
	"github.com/balansir/pidtune/internal/optimize"
	"github.com/balansir/pidtune/pkg/autotune"
)

func main() {
	run := flag.Bool("run", false, "запустить сессию автонастройки")
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию pidtune.yml)")
	sim := flag.Bool("sim", false, "встроенный симулятор вместо робота")
	algorithm := flag.String("algorithm", "", "алгоритм поиска: ga, pso, relay, bayes (переопределяет config)")
	port := flag.String("port", "", "последовательный порт (переопределяет config)")
	baud := flag.Int("baud", 0, "скорость порта (переопределяет config)")
	url := flag.String("url", "", "адрес WebSocket моста (переопределяет config)")
	seed := flag.Int64("seed", 0, "зерно ГСЧ поиска (переопределяет config)")
	apply := flag.Bool("apply", false, "применить найденные гейны по завершении")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil && *configPath != "" {
		log.Fatalf("config: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	if *sim {
		cfg.Device.Transport = "sim"
	}
	if *algorithm != "" {
		cfg.Optimizer.Algorithm = *algorithm
	}
	if *port != "" {
		cfg.Device.Port = *port
	}
	if *baud != 0 {
		cfg.Device.Baud = *baud
	}
	if *url != "" {
		cfg.Device.URL = *url
	}
	if *seed != 0 {
		cfg.Optimizer.Seed = *seed
	}

	if *run {
		logger.Quiet = *quiet
		runSession(cfg, *apply, *quiet)
		return
	}

	fmt.Println("pidtune: используйте -run для запуска сессии (-sim — симулятор; p/r/s + Enter — пауза/продолжить/стоп).")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "pidtune.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return config.Load(path)
}

// runSession ведёт сессию до конца; SIGINT/SIGTERM останавливают поиск
// кооперативно, с восстановлением базовых гейнов.
func runSession(cfg *config.Config, apply, quiet bool) {
	t, err := autotune.New(cfg, nil)
	if err != nil {
		log.Fatalf("pidtune: %v", err)
	}
	defer t.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, останов сессии...", sig)
		t.Stop()
	}()

	if err := t.Start(ctx); err != nil {
		log.Fatalf("pidtune: %v", err)
	}
	go readCommands(t)

	best, err := t.Wait()
	switch {
	case err == nil:
	case errors.Is(err, optimize.ErrStopped):
		logger.Info("сессия остановлена")
	default:
		log.Fatalf("pidtune: %v", err)
	}

	if math.IsInf(best.Fitness, 1) {
		fmt.Println("pidtune: ни одного успешного испытания, гейны не найдены")
		return
	}
	if !quiet {
		fmt.Printf("Лучшие гейны (%s): kp=%.4g ki=%.4g kd=%.4g, fitness %.6g\n",
			t.Algorithm(), best.Kp, best.Ki, best.Kd, best.Fitness)
	}
	if apply {
		if err := t.ApplyBest(best); err != nil {
			log.Fatalf("pidtune: %v", err)
		}
	}
}

// readCommands читает односимвольные команды управления сессией со stdin.
func readCommands(t *autotune.Tuner) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "p":
			t.Pause()
		case "r":
			t.Resume()
		case "s", "q":
			t.Stop()
			return
		}
	}
}
