package walk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mpataki/figwalk/internal/figma"
	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/navigate"
	"github.com/mpataki/figwalk/internal/oracle"
	"github.com/mpataki/figwalk/internal/prototype"
)

const DefaultMaxSteps = 10

// Request describes one walkthrough of a flow.
type Request struct {
	Flow    *prototype.Flow
	Index   prototype.Index
	FileKey string

	// Instruction is sent with every screen.
	Instruction string
	// Start is the rendering of the first screen.
	Start *figma.Image
	// From is the first screen; the flow root when nil.
	From *prototype.Node

	MaxSteps int
	Cancel   *models.CancelToken

	// OnStep is called once per recorded step, after its outcome is known,
	// with the rendering the oracle was shown.
	OnStep func(step *models.Step, image *figma.Image)
}

// Walk is the outcome of a walkthrough. Steps gathered before a failure
// are kept.
type Walk struct {
	State   models.RunState
	Steps   []*models.Step
	Current *prototype.Node
}

// Engine drives the oracle through a flow one screen at a time.
type Engine struct {
	source figma.Source
	images figma.Materializer
	oracle oracle.Oracle
	logger *zap.Logger
}

func New(source figma.Source, images figma.Materializer, o oracle.Oracle, logger *zap.Logger) *Engine {
	return &Engine{
		source: source,
		images: images,
		oracle: o,
		logger: logger,
	}
}

// Walk runs until the oracle reports completion, navigation cannot
// continue, the step limit is reached, or the walk is cancelled. The
// returned error is non-nil only for invalid requests and collaborator
// failures; in the latter case the partial Walk is returned with it.
func (e *Engine) Walk(ctx context.Context, req Request) (*Walk, error) {
	if req.Flow == nil || req.Flow.Root == nil {
		return nil, models.InputErrorf("no flow to walk")
	}
	if req.Start == nil {
		return nil, models.InputErrorf("no starting image for flow %q", req.Flow.Name)
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	w := &Walk{State: models.RunStateWalking, Current: req.From}
	if w.Current == nil {
		w.Current = req.Flow.Root
	}
	image := req.Start

	for step := 1; ; step++ {
		if step > maxSteps {
			w.State = models.RunStateHaltedStepLimit
			e.logger.Info("Step limit reached", zap.String("flow", req.Flow.Name), zap.Int("max_steps", maxSteps))
			return w, nil
		}
		if req.Cancel.Cancelled() || ctx.Err() != nil {
			w.State = models.RunStateCancelled
			return w, nil
		}

		text, err := e.oracle.Describe(ctx, oracle.DescribeRequest{
			Image:       image.Data,
			MimeType:    image.MimeType,
			Instruction: req.Instruction,
			Screen:      w.Current.Name,
			Step:        step,
		})
		if err != nil {
			w.State = models.RunStateHaltedError
			return w, models.Collaborator(models.OpDescribe, err)
		}

		reply := oracle.ParseReply(text)
		decision := navigate.ResolveDetail(w.Current, req.Index, reply.Component, reply.Location)

		s := &models.Step{
			Index:          step,
			NodeID:         w.Current.ID,
			NodeName:       w.Current.Name,
			ImageRef:       image.URL,
			Response:       text,
			ActionLocation: decision.Location(),
		}
		w.Steps = append(w.Steps, s)

		e.logger.Debug("Step described",
			zap.Int("step", step),
			zap.String("screen", w.Current.Name),
			zap.String("component", reply.Component),
			zap.String("location", reply.Location),
			zap.Bool("complete", reply.Complete),
			zap.String("decision", decision.Reason))

		switch {
		case reply.Complete:
			w.State = models.RunStateCompleted

		case !reply.HasComponent:
			annotate(s, "AI did not specify an action. Halting analysis.")
			w.State = models.RunStateHaltedNoAction

		case decision.Target == nil:
			reason := fmt.Sprintf("AI suggested an action on \"%s\"", reply.Component)
			if reply.Location != "" {
				reason += fmt.Sprintf(" at location \"%s\"", reply.Location)
			}
			annotate(s, reason+", but no unique matching prototype link was found. This might be the end of the flow.")
			w.State = models.RunStateHaltedUnresolved

		default:
			// A cycle leaf resolves to the expanded occurrence of its screen.
			next := prototype.Find(req.Flow.Root, decision.Target.ID)
			if next == nil {
				annotate(s, "AI tried to navigate, but the destination node was not found in the flow tree.")
				w.State = models.RunStateHaltedMissing
				break
			}
			e.notify(req, s, image)

			img, err := e.render(ctx, req.FileKey, next.ID)
			if err != nil {
				w.State = models.RunStateHaltedError
				return w, err
			}
			w.Current = next
			image = img
			continue
		}

		e.notify(req, s, image)
		return w, nil
	}
}

func (e *Engine) render(ctx context.Context, fileKey, nodeID string) (*figma.Image, error) {
	ref, err := e.source.FetchImage(ctx, fileKey, nodeID)
	if err != nil {
		return nil, models.Collaborator(models.OpFetchImage, err)
	}
	img, err := e.images.Download(ctx, ref)
	if err != nil {
		return nil, models.Collaborator(models.OpDownload, err)
	}
	return img, nil
}

func (e *Engine) notify(req Request, s *models.Step, image *figma.Image) {
	if req.OnStep != nil {
		req.OnStep(s, image)
	}
}

func annotate(s *models.Step, note string) {
	s.Response += "\n\n**" + note + "**"
}
