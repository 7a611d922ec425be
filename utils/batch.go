package utils

import (
	"context"
	"sync"
)

// BatchConfig 批量操作配置
type BatchConfig struct {
	// BatchSize 批量大小
	BatchSize int
	// Concurrency 并发数量
	Concurrency int
	// OnProgress 进度回调函数
	OnProgress func(progress BatchProgress)
}

// BatchProgress 批量操作进度
type BatchProgress struct {
	// Completed 已完成数量
	Completed int
	// Total 总数量
	Total int
	// Percentage 进度百分比（0-100）
	Percentage int
	// Success 成功数量
	Success int
	// Failed 失败数量
	Failed int
}

// DefaultBatchConfig 返回默认批量配置
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:   50,
		Concurrency: 5,
		OnProgress:  nil,
	}
}

// BatchQueryResult 批量查询结果
type BatchQueryResult[T any] struct {
	// Results 成功的结果
	Results []T
	// Errors 失败的项目
	Errors []BatchError
	// Total 总数量
	Total int
	// Success 成功数量
	Success int
	// Failed 失败数量
	Failed int
}

// BatchError 批量操作错误
type BatchError struct {
	// Index 项目索引
	Index int
	// Error 错误信息
	Error error
}

// BatchQuery 批量查询
//
// 对一组输入并发调用查询函数，返回成功和失败的结果列表
//
// 示例：
//
//	assets := [][]byte{assetA, assetB}
//	results, err := BatchQuery(ctx, assets, func(ctx context.Context, asset []byte, index int) (uint64, error) {
//	    return claimService.OutstandingAllowance(ctx, debtor, asset)
//	}, DefaultBatchConfig())
func BatchQuery[T any, R any](
	ctx context.Context,
	items []T,
	queryFn func(ctx context.Context, item T, index int) (R, error),
	config *BatchConfig,
) (*BatchQueryResult[R], error) {
	if config == nil {
		config = DefaultBatchConfig()
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}

	results := make([]R, 0, len(items))
	batchErrors := make([]BatchError, 0)

	// resultsMu 同时保护结果列表与进度计数
	var resultsMu sync.Mutex
	completed := 0
	success := 0
	failed := 0

	// updateProgress 在 resultsMu 持有下调用
	updateProgress := func() {
		completed++
		percentage := (completed * 100) / len(items)
		if config.OnProgress != nil {
			config.OnProgress(BatchProgress{
				Completed:  completed,
				Total:      len(items),
				Percentage: percentage,
				Success:    success,
				Failed:     failed,
			})
		}
	}

	// 分批处理，批内并发受信号量限制
	for batchIdx, batch := range batchArray(items, config.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, config.Concurrency)

		for i, item := range batch {
			wg.Add(1)
			globalIndex := batchIdx*config.BatchSize + i
			go func(idx int, batchItem T) {
				defer wg.Done()

				sem <- struct{}{}
				defer func() { <-sem }()

				result, err := queryFn(ctx, batchItem, idx)
				resultsMu.Lock()
				if err != nil {
					batchErrors = append(batchErrors, BatchError{
						Index: idx,
						Error: err,
					})
					failed++
				} else {
					results = append(results, result)
					success++
				}
				updateProgress()
				resultsMu.Unlock()
			}(globalIndex, item)
		}

		wg.Wait()
	}

	return &BatchQueryResult[R]{
		Results: results,
		Errors:  batchErrors,
		Total:   len(items),
		Success: success,
		Failed:  failed,
	}, nil
}

// batchArray 将数组分批次处理
func batchArray[T any](array []T, batchSize int) [][]T {
	batches := make([][]T, 0)
	for i := 0; i < len(array); i += batchSize {
		end := i + batchSize
		if end > len(array) {
			end = len(array)
		}
		batches = append(batches, array[i:end])
	}
	return batches
}
