package snowflake

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Generator 雪花 ID 生成器，同一节点生成的 ID 严格递增
type Generator struct {
	node *snowflake.Node
}

// NewGenerator 创建雪花节点，machineID 范围 0-1023，分布式部署时每台机器需唯一
func NewGenerator(machineID int64) (*Generator, error) {
	if machineID < 0 || machineID > 1023 {
		return nil, fmt.Errorf("snowflake machine id %d out of range [0,1023]", machineID)
	}
	node, err := snowflake.NewNode(machineID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Snowflake node initialized", zap.Int64("machineID", machineID))
	return &Generator{node: node}, nil
}

// NextID 生成雪花 ID (int64)
func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}
