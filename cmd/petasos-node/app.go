package main

import (
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "petasos/pkg/activity"
    "petasos/pkg/config"
    "petasos/pkg/execctl"
    "petasos/pkg/jobcard"
    "petasos/pkg/memkv"
    "petasos/pkg/observability"
    "petasos/pkg/ponos"
    "petasos/pkg/task"
    "petasos/pkg/taskcache"
    "petasos/pkg/taskfactory"
    "petasos/pkg/topology"
)

// Node groups the coordination components exposed to the message pipeline
// hosting this process.
type Node struct {
    Factory    *taskfactory.Factory
    Manager    *activity.Manager
    Controller *execctl.Controller
    Cache      *taskcache.Store
    Cards      *jobcard.Set
}

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    // Startup logs + configuration dump
    zap.L().Info("petasos-node started", zap.String("app", cfg.AppName))
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    plant := topology.FromConfig(cfg)

    // node-local KV backing the task cache and the in-process registry
    kv := memkv.New(memkv.Options{})
    defer kv.Close()

    cacheTTL := time.Duration(cfg.Tasking.CacheTTLMinutes) * time.Minute
    cache := taskcache.NewStore(kv, cacheTTL)
    cards := jobcard.NewSet()
    repo := ponos.NewInProcess(kv)

    seq := &taskfactory.SequenceSource{}
    policy := activity.Policy{
        RegistrationRetry: time.Duration(cfg.Tasking.RegistrationRetrySeconds) * time.Second,
        MaxAttempts:       uint64(cfg.Tasking.RegistrationMaxAttempts),
    }

    // Node wires the coordination core for the surrounding message pipeline.
    node := &Node{
        Factory:    taskfactory.New(seq, plant),
        Manager:    activity.NewManager(cache, repo, plant, policy),
        Controller: execctl.NewController(cards, cache, repo, plant, time.Duration(cfg.Tasking.ReallocationWaitSeconds)*time.Second),
        Cache:      cache,
        Cards:      cards,
    }
    node.Manager.OnTaskReady(func(id task.ID) {
        zap.L().Debug("task ready for execution consideration", zap.String("task", id.Local))
    })

    zap.L().Info("node is running; press Ctrl+C to exit",
        zap.String("plant", plant.PlantID), zap.String("participant", plant.ParticipantName))

    // periodic sweep of finalised tasks whose cache documents expired
    sweep := time.NewTicker(time.Minute)
    defer sweep.Stop()

    sig := make(chan os.Signal, 1)
    signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
    for {
        select {
        case <-sweep.C:
            cache.Sweep()
        case s := <-sig:
            zap.L().Info("shutting down", zap.String("signal", s.String()))
            return 0
        }
    }
}
