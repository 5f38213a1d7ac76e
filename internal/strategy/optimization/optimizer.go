// Package optimization sweeps strategy parameter grids over backtest runs.
package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/analytics"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/backtesting"
)

// ParameterRange defines a range for a parameter to optimize.
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Result holds one parameter combination's backtest outcome.
type Result struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// StrategyFactory builds a strategy from one parameter combination.
type StrategyFactory func(params map[string]float64) (*strategy.Strategy, error)

// Config holds configuration for the optimizer.
type Config struct {
	ParameterRanges []ParameterRange
	Backtest        backtesting.Config
	// ScoreFunction ranks combinations; DefaultScoreFunction when nil.
	ScoreFunction func(*analytics.PerformanceMetrics) float64
}

// Optimizer sweeps a parameter grid, running one backtest per combination.
type Optimizer struct {
	cfg     Config
	factory StrategyFactory
	engine  func(*strategy.Strategy) (*backtesting.Engine, error)
	logger  ports.Logger
}

// New creates an optimizer. engineFor builds the backtest engine for each
// parameterized strategy so the caller controls stop policy and persistence.
func New(cfg Config, factory StrategyFactory, engineFor func(*strategy.Strategy) (*backtesting.Engine, error), logger ports.Logger) (*Optimizer, error) {
	if factory == nil {
		return nil, fmt.Errorf("strategy factory is required for optimizer")
	}
	if engineFor == nil {
		return nil, fmt.Errorf("engine factory is required for optimizer")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if len(cfg.ParameterRanges) == 0 {
		return nil, fmt.Errorf("at least one parameter range is required")
	}
	for _, pr := range cfg.ParameterRanges {
		if pr.Step <= 0 {
			return nil, fmt.Errorf("parameter range %q must have a positive step, got %v", pr.Name, pr.Step)
		}
		if pr.Max < pr.Min {
			return nil, fmt.Errorf("parameter range %q has max %v below min %v", pr.Name, pr.Max, pr.Min)
		}
	}
	if cfg.ScoreFunction == nil {
		cfg.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{cfg: cfg, factory: factory, engine: engineFor, logger: logger}, nil
}

// Optimize runs a backtest for every parameter combination and returns the
// results sorted by score, best first. Combinations whose strategy or run
// fails are logged and dropped rather than failing the sweep.
func (o *Optimizer) Optimize(ctx context.Context, bars []*domain.Bar) ([]Result, error) {
	combinations := o.generateParameterCombinations()
	if len(combinations) == 0 {
		return nil, fmt.Errorf("parameter ranges produced no combinations")
	}

	resultChan := make(chan Result, len(combinations))
	var wg sync.WaitGroup

	for _, params := range combinations {
		wg.Add(1)
		go func(params map[string]float64) {
			defer wg.Done()

			strat, err := o.factory(params)
			if err != nil {
				o.logger.Warn(ctx, "Skipping parameter combination", map[string]interface{}{
					"params": params, "error": err.Error(),
				})
				return
			}
			engine, err := o.engine(strat)
			if err != nil {
				o.logger.Warn(ctx, "Skipping parameter combination", map[string]interface{}{
					"params": params, "error": err.Error(),
				})
				return
			}

			cfg := o.cfg.Backtest
			cfg.RunID = "" // each combination gets its own run id
			run, err := engine.Run(ctx, bars, cfg)
			if err != nil {
				o.logger.Warn(ctx, "Backtest failed for parameter combination", map[string]interface{}{
					"params": params, "error": err.Error(),
				})
				return
			}

			metrics := analytics.AnalyzePerformance(run.Trades, o.cfg.Backtest.AccountSize)
			resultChan <- Result{
				Parameters: params,
				Metrics:    metrics,
				Score:      o.cfg.ScoreFunction(metrics),
			}
		}(params)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(combinations))
	for result := range resultChan {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	o.logger.Info(ctx, "Optimization sweep complete", map[string]interface{}{
		"combinations": len(combinations), "completed": len(results),
	})
	return results, nil
}

// generateParameterCombinations expands the ranges into the full grid.
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	currentCombination := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.cfg.ParameterRanges) {
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.cfg.ParameterRanges[paramIndex]
		value := param.Min
		for value <= param.Max+param.Step/2 { // epsilon for floating point comparison
			if param.IsInt {
				value = math.Round(value)
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
			value += param.Step
		}
	}

	generate(0)
	return combinations
}

// DefaultScoreFunction combines win rate, drawdown resistance and total
// return into a single ranking score.
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	score := 0.0
	score += metrics.WinRate * 0.3
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.TotalReturn * 0.3
	score += metrics.AverageRiskReward * 0.2
	return score
}
