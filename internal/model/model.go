// Package model 关系链相关的数据表
package model

// All 需要建表的全部模型，交给 database.InitDB 或测试库迁移
func All() []any {
	return []any{&Profile{}, &Follow{}, &Notification{}}
}
