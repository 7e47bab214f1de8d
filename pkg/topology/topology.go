// Package topology exposes the local processing plant's identity as seen by
// the coordination core. Read-only after construction.
package topology

import (
    "petasos/pkg/config"
    "petasos/pkg/task"
)

// Plant describes the node hosting this process.
type Plant struct {
    PlantID         string
    ProcessorID     string
    ParticipantName string
    Concurrency     task.ConcurrencyMode
    Resilience      task.ResilienceMode
}

// FromConfig builds the plant view from loaded configuration.
func FromConfig(c *config.Config) Plant {
    p := Plant{
        PlantID:         c.NodeID,
        ProcessorID:     c.NodeID + "/wup-0",
        ParticipantName: c.ParticipantName,
    }
    if c.Tasking.ConcurrencyMode == "clustered" {
        p.Concurrency = task.ConcurrencyClustered
    }
    if c.Tasking.ResilienceMode == "multisite" {
        p.Resilience = task.ResilienceMultiSite
    }
    return p
}
