package redis

import (
	"sync"

	"go.uber.org/zap"
)

// workerPool 固定数量的后台协程，串行消费缓存任务
type workerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newWorkerPool(workerNum, bufferSize int) *workerPool {
	p := &workerPool{tasks: make(chan func(), bufferSize)}
	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.run()
	}
	zap.L().Info("Redis Cache Workers started", zap.Int("workers", workerNum), zap.Int("buffer", bufferSize))
	return p
}

func (p *workerPool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.exec(task)
	}
}

// exec 单个任务 panic 不影响 worker 继续消费
func (p *workerPool) exec(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("Redis Worker panic", zap.Any("recover", rec))
		}
	}()
	task()
}

// submit 队列已满时降级为同步执行
func (p *workerPool) submit(task func()) {
	select {
	case p.tasks <- task:
	default:
		zap.L().Warn("Redis cache task channel full, executing synchronously")
		p.exec(task)
	}
}

// close 停止接收任务并等待队列中的任务执行完
func (p *workerPool) close() {
	p.once.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}
