package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fyerfyer/doc-qa-extractor/api/model"
	"github.com/fyerfyer/doc-qa-extractor/internal/models"
	"github.com/fyerfyer/doc-qa-extractor/internal/report"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
)

// runOnce 处理单个文档后退出
// 问题与进度输出到标准输出，结果文档写入opts.Output
func runOnce(ctx context.Context, app *application, opts options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return process(ctx, app.Pipeline, opts, os.Stdout)
}

// process 依次执行提取、回答和导出
func process(ctx context.Context, pipeline *services.Pipeline, opts options, out io.Writer) error {
	f, err := os.Open(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	progress := progressPrinter(out)

	run, err := pipeline.ExtractQuestions(ctx, filepath.Base(opts.Input), f, progress)
	if err != nil {
		return err
	}
	printQuestions(out, run)

	if !opts.Answer || len(run.Questions) == 0 {
		return nil
	}

	run, err = pipeline.GenerateAnswers(ctx, run.ID, progress)
	if err != nil {
		return err
	}
	for _, result := range run.Results {
		fmt.Fprintf(out, "\nQ%d: %s\nA: %s\n", result.Index, result.Question, result.Answer)
	}

	data, format, err := pipeline.Assemble(run.ID, report.Format(opts.Format))
	if err != nil {
		return err
	}

	output := opts.Output
	if output == "" {
		output = report.FileName(format)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(out, "\nSaved %s\n", output)
	return nil
}

// printQuestions 输出提取结果
func printQuestions(out io.Writer, run *models.Run) {
	for _, notice := range run.Notices {
		fmt.Fprintf(out, "Note: %s\n", notice)
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}

	if len(run.Questions) == 0 {
		fmt.Fprintln(out, model.NoQuestionsMessage)
		return
	}

	fmt.Fprintf(out, "Extracted %d questions (%s):\n", len(run.Questions), run.Method)
	for i, q := range run.Questions {
		fmt.Fprintf(out, "%d. %s\n", i+1, q)
	}
}

// progressPrinter 输出各阶段的完成百分比
func progressPrinter(out io.Writer) services.ProgressObserver {
	return services.ProgressFunc(func(stage services.Stage, current, total int) {
		if total <= 0 {
			return
		}
		fmt.Fprintf(out, "[%s] %d%% (%d/%d)\n", stage, current*100/total, current, total)
	})
}
