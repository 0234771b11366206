// Package xconf 基于 koanf 的配置加载，支持 YAML/JSON 与文件变更监视。
//
// 典型用法：启动时 Unmarshal 到带 koanf 标签的结构体；
// 需要热更新的字段（如日志级别）在 Watch 回调中重新读取。
//
//	cfg, err := xconf.New("/etc/app/config.yaml")
//	var c AppConfig
//	err = cfg.Unmarshal("", &c)
//
//	w, _ := xconf.Watch(cfg, func(cfg xconf.Config, err error) { ... })
//	group.Go(w.Run)
package xconf
