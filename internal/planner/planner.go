// Package planner turns discovered topology into the set of sync jobs the
// executor runs. See spec §4.2.
package planner

import (
	"fmt"

	"github.com/cuemby/bitslides/internal/log"
	"github.com/cuemby/bitslides/internal/topology"
)

// SyncJob is a single src -> dst copy route, optionally proxied through an
// intermediate volume. Via equals Dst for a direct route.
type SyncJob struct {
	Src string
	Via string
	Dst string

	// Wakeup is signaled by the watcher whenever the source slide changes.
	// Capacity 1: a pending wakeup coalesces bursts into a single re-sync,
	// the same non-blocking-send contract the watcher relies on.
	Wakeup chan struct{}
}

// New builds a SyncJob with its wakeup channel ready to receive.
func New(src, via, dst string) SyncJob {
	return SyncJob{Src: src, Via: via, Dst: dst, Wakeup: make(chan struct{}, 1)}
}

// Direct reports whether this job goes straight to its destination
// (Via == Dst) rather than through an intermediate volume.
func (j SyncJob) Direct() bool { return j.Via == j.Dst }

// Equal compares jobs by their (src, via, dst) triple only; the Wakeup
// channel is identity, not part of the job's value.
func (j SyncJob) Equal(other SyncJob) bool {
	return j.Src == other.Src && j.Via == other.Via && j.Dst == other.Dst
}

// String renders "src -via-> dst", or "src -_-> dst" for a direct route.
func (j SyncJob) String() string {
	via := j.Via
	if j.Direct() {
		via = "_"
	}
	return fmt.Sprintf("%s -%s-> %s", j.Src, via, j.Dst)
}

// Build enumerates every sync job implied by volumes and, as a side effect,
// creates on disk (and registers in volumes) any destination slide a job
// needs but doesn't find yet. An empty plan is not an error; equal jobs are
// not deduplicated, by design, so callers may rely on equality in tests.
func Build(volumes topology.Volumes) []SyncJob {
	logger := log.WithComponent("planner")
	var jobs []SyncJob

	for srcName, src := range volumes {
		if src.Disabled {
			continue
		}
		for dstName, slide := range src.Slides {
			if dstName == srcName {
				continue
			}

			if dst, ok := volumes[dstName]; ok && !dst.Disabled {
				jobs = append(jobs, New(srcName, dstName, dstName))
				logger.Debug().Str("src", srcName).Str("dst", dstName).Msg("added direct route")
				continue
			}

			if slide.OrElse != "" {
				if via, ok := volumes[slide.OrElse]; ok && !via.Disabled {
					jobs = append(jobs, New(srcName, slide.OrElse, dstName))
					logger.Debug().Str("src", srcName).Str("dst", dstName).Str("via", slide.OrElse).Msg("added indirect route")
					continue
				}
				logger.Info().Str("route", slide.OrElse).Msg("default route not available")
				continue
			}

			logger.Info().Str("dst", dstName).Msg("destination not available and no default route")
		}
	}

	for _, job := range jobs {
		via := volumes[job.Via]
		if _, ok := via.Slides[job.Dst]; ok {
			continue
		}
		if err := via.CreateSlide(job.Dst); err != nil {
			logger.Warn().Err(err).Str("via", job.Via).Str("dst", job.Dst).Msg("failed to create destination slide")
			continue
		}
		volumes[job.Via] = via
	}

	return jobs
}
