package validate

import "novel-engine/server/internal/model"

// DefaultStartScene 是约定的入口场景名，永远不会被报告为不可达。
const DefaultStartScene = "start"

// Edge 是场景图上的一条边，To 为 End 表示通往结局。
type Edge struct {
	From string       `json:"from"`
	To   model.Target `json:"to"`
}

// Report 是可达性分析的结果，所有列表都按场景声明顺序排列。
type Report struct {
	Start string `json:"start"`
	Edges []Edge `json:"edges"`
	// Incoming 是每个场景的入边数。
	Incoming map[string]int `json:"incoming"`
	// EndingEdges 是通往结局（End）的边数。
	EndingEdges int `json:"ending_edges"`
	// Unreachable 是没有任何入边的场景（不含入口场景）。
	Unreachable []string `json:"unreachable"`
	// Dangling 是指向不存在场景的边。
	Dangling []Edge `json:"dangling,omitempty"`
}

// OK 表示没有不可达场景，也没有悬空目标。
func (r Report) OK() bool {
	return len(r.Unreachable) == 0 && len(r.Dangling) == 0
}

// Reachability 对全部场景做静态分析。只读，不会修改游标与历史。
// scenes 的顺序即报告顺序；start 为空时使用 DefaultStartScene。
func Reachability(scenes []*model.Scene, start string) Report {
	if start == "" {
		start = DefaultStartScene
	}

	report := Report{
		Start:       start,
		Edges:       []Edge{},
		Incoming:    make(map[string]int, len(scenes)),
		Unreachable: []string{},
	}
	for _, s := range scenes {
		report.Incoming[s.Name] = 0
	}

	for _, s := range scenes {
		for _, action := range s.Actions() {
			for _, target := range action.OutgoingTargets() {
				edge := Edge{From: s.Name, To: target}
				report.Edges = append(report.Edges, edge)
				if target.IsEnd() {
					report.EndingEdges++
					continue
				}
				if _, known := report.Incoming[string(target)]; !known {
					report.Dangling = append(report.Dangling, edge)
					continue
				}
				report.Incoming[string(target)]++
			}
		}
	}

	for _, s := range scenes {
		if s.Name == start {
			continue
		}
		if report.Incoming[s.Name] == 0 {
			report.Unreachable = append(report.Unreachable, s.Name)
		}
	}
	return report
}
