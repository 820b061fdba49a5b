package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/productimages/internal/pkg/jobqueue"
)

// HandleEnqueueSyncAll schedules a full sync on the job queue
func (pc *ProductImageController) HandleEnqueueSyncAll(c *fiber.Ctx) error {
	if pc.jobs == nil {
		return respondError(c, errNoQueue)
	}
	job, err := pc.jobs.EnqueueSyncAll(c.UserContext(), queryFlag(c, "rebuild"))
	return accepted(c, job, err)
}

// HandleEnqueueSync schedules the sync of one variant directory
func (pc *ProductImageController) HandleEnqueueSync(c *fiber.Ctx) error {
	if pc.jobs == nil {
		return respondError(c, errNoQueue)
	}
	key, err := pc.engine.Config().Normalize(c.Params("key"))
	if err != nil {
		return respondError(c, err)
	}
	job, err := pc.jobs.EnqueueSyncDirectory(c.UserContext(), key, queryFlag(c, "rebuild"))
	return accepted(c, job, err)
}

// HandleEnqueueResize schedules a variant rebuild
func (pc *ProductImageController) HandleEnqueueResize(c *fiber.Ctx) error {
	if pc.jobs == nil {
		return respondError(c, errNoQueue)
	}
	cfg := pc.engine.Config()
	from, err := cfg.Normalize(c.Params("from"))
	if err != nil {
		return respondError(c, err)
	}
	to, err := cfg.Normalize(c.Params("to"))
	if err != nil {
		return respondError(c, err)
	}
	job, err := pc.jobs.EnqueueRebuild(c.UserContext(), from, to)
	return accepted(c, job, err)
}

// HandleGetJob returns the state of a queued job
func (pc *ProductImageController) HandleGetJob(c *fiber.Ctx) error {
	if pc.jobs == nil {
		return respondError(c, errNoQueue)
	}
	job, err := pc.jobs.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(job)
}

func accepted(c *fiber.Ctx, job *jobqueue.Job, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// HandleStats returns store statistics and, when counting is enabled, the
// lookup counters. ?fresh=1 bypasses the cache, ?reset=1 drains the
// counters.
func (pc *ProductImageController) HandleStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	st, err := pc.stats.Get(ctx, queryFlag(c, "fresh"))
	if err != nil {
		return respondError(c, err)
	}
	out := fiber.Map{"store": st}

	if pc.lookups != nil {
		var lookups map[string]int64
		if queryFlag(c, "reset") {
			lookups, err = pc.lookups.Drain(ctx)
		} else {
			lookups, err = pc.lookups.Totals(ctx)
		}
		if err != nil {
			return respondError(c, err)
		}
		out["lookups"] = lookups
	}
	if pc.jobs != nil {
		out["queue"] = true
	}
	return c.JSON(out)
}
