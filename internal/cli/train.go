// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// train.go - Training control.
//
// Command: train
//
// Examples:
//   secondme train                    Start (or retrain) and watch progress
//   secondme train start --detach     Start without watching
//   secondme train status --watch     Reattach to a running training
//   secondme train stop

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/secondme-tui/internal/api"
	"github.com/jeranaias/secondme-tui/internal/storage"
	"github.com/jeranaias/secondme-tui/internal/training"
)

// HandleTrain handles the "train" command.
func HandleTrain(ctx context.Context, rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "json", "watch", "w", "detach", "d", "logs")
	jsonMode := args.JSON || p.BoolFlag("json")
	watch := !p.BoolFlag("detach", "d")
	ctl := rt.Training

	switch sub := p.Subcommand(); sub {
	case "", "start", "retrain":
		var (
			retrained bool
			err       error
		)
		switch sub {
		case "start":
			err = ctl.StartTraining(ctx)
		case "retrain":
			retrained, err = true, ctl.Retrain(ctx)
		default:
			retrained, err = ctl.Train(ctx)
		}
		if err != nil {
			if errors.Is(err, training.ErrInsufficientMemories) {
				return fmt.Errorf("%w; upload more memories before training", err)
			}
			return NewCommandError("train", "start", "backend rejected the request", err)
		}
		verb := "Training started"
		if retrained {
			verb = "Retraining started"
		}
		fmt.Fprintf(rt.Out, "%s for %s\n", SuccessStyle.Render(verb), ctl.BaseModel())
		if !watch {
			return nil
		}
		return watchTraining(ctx, rt, p.BoolFlag("logs"))

	case "stop":
		if err := ctl.StopTraining(ctx); err != nil {
			return NewCommandError("train", "stop", "backend rejected the request", err)
		}
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Training stopped."))
		return nil

	case "status":
		progress, err := rt.Monitor.CheckTrainStatus(ctx)
		if err != nil && !errors.Is(err, api.ErrBusiness) {
			return NewCommandError("train", "status", "cannot read progress", err)
		}
		if _, err := rt.Service.ProbeServiceStatus(ctx); err != nil {
			rt.log.Debugw("service status unavailable", "error", err)
		}
		snap := rt.Monitor.Snapshot()
		if jsonMode {
			return NewJSONResponse("train status", snap).Print(rt.Out)
		}
		if progress.Status == "" && err != nil {
			fmt.Fprintln(rt.Out, DimStyle.Render(api.UserMessage(err)))
		}
		printTrainingSnapshot(rt.Out, snap)
		if p.BoolFlag("watch", "w") {
			if !ctl.Resume(ctx) {
				fmt.Fprintln(rt.Out, DimStyle.Render("No training in progress."))
				return nil
			}
			return watchTraining(ctx, rt, p.BoolFlag("logs"))
		}
		return nil

	default:
		return ErrUnknownSubcommand("train", sub, []string{"start", "retrain", "stop", "status"})
	}
}

// watchTraining prints progress changes until the poller finishes or ctx
// ends. With logs the training log lines are interleaved.
func watchTraining(ctx context.Context, rt *Runtime, logs bool) error {
	last := ""
	unsub := rt.Monitor.Subscribe(func(s training.Snapshot) {
		line := progressLine(s)
		if line != last {
			fmt.Fprintln(rt.Out, line)
			last = line
		}
	})
	defer unsub()

	if logs {
		rt.Logs.OnEntry(func(e storage.LogEntry) {
			fmt.Fprintln(rt.Out, DimStyle.Render("  | "+e.Message))
		})
		defer rt.Logs.OnEntry(nil)
	}
	rt.Logs.OnError(func(err error) {
		fmt.Fprintln(rt.Err, WarningStyle.Render("log stream: "+err.Error()))
	})

	select {
	case <-ctx.Done():
		rt.Training.Close()
		fmt.Fprintln(rt.Out, DimStyle.Render("Detached; training continues on the server."))
		return nil
	case <-rt.Training.Poller().Done():
	}
	rt.Logs.Close()

	snap := rt.Monitor.Snapshot()
	switch state := rt.Training.Poller().State(); {
	case state == training.PollCompleted:
		fmt.Fprintln(rt.Out, SuccessStyle.Render("Training complete."))
		_ = rt.Blobs.SetFlag(storage.KeyHasShownTrainingComplete, true)
		return nil
	case snap.Error || state == training.PollFailed:
		return NewCommandError("train", "watch", "training failed", errors.New(failedStage(snap.Progress)))
	}
	return nil
}

func progressLine(s training.Snapshot) string {
	stage := ""
	if i := training.StageIndex(s.Progress.CurrentStage); i >= 0 {
		stage = s.Progress.StageDetails[i].Name
	}
	if s.Progress.CurrentStageStep != "" {
		stage += " / " + s.Progress.CurrentStageStep
	}
	return fmt.Sprintf("%s %5.1f%%  %s", RenderModelStatus(s.Status), s.Progress.Overall, stage)
}

func failedStage(p training.Progress) string {
	for _, st := range p.StageDetails {
		if st.Status == training.StatusFailed {
			return "stage failed: " + st.Name
		}
	}
	return "progress reported a failure"
}

func printTrainingSnapshot(w io.Writer, s training.Snapshot) {
	field(w, "Status", RenderModelStatus(s.Status))
	field(w, "Overall", fmt.Sprintf("%.1f%%", s.Progress.Overall))
	if s.Error {
		field(w, "Error", ErrorStyle.Render("training failed"))
	}
	fmt.Fprintln(w)
	for i, st := range s.Progress.StageDetails {
		name := st.Name
		if name == "" {
			name = training.StageNames[i]
		}
		bar := progressBar(st.Progress, 20)
		fmt.Fprintf(w, "  %d. %s %5.1f%%  %s  %s\n", i+1, bar, st.Progress, RenderStageStatus(st.Status), name)
		if st.CurrentStep != "" && st.Status == training.StatusInProgress {
			fmt.Fprintln(w, DimStyle.Render("       step: "+st.CurrentStep))
		}
	}
}

func progressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
