package engine

import (
	"container/heap"

	"github.com/shaiso/Overseer/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Task — описание задачи из конфигурации.
	Task *domain.TaskDef

	// ID — имя задачи.
	ID string

	// Index — позиция в порядке объявления; используется для детерминированного tie-break.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф задач.
type DAG struct {
	// Nodes — все узлы графа (имя → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей, в порядке объявления.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node

	// declared — узлы в порядке объявления.
	declared []*Node
}

// Order возвращает порядок выполнения задач.
//
// Граф строится только по переданному набору: рёбра на задачи вне набора
// игнорируются (например, зависимости сервисов при упорядочивании one-shot шагов).
// Задачи без взаимных ограничений идут в порядке объявления.
// При цикле возвращается *CycleError и никакого частичного порядка.
func Order(tasks []domain.TaskDef) ([]string, error) {
	dag, err := BuildDAG(tasks)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(dag.Order))
	for i, node := range dag.Order {
		names[i] = node.ID
	}
	return names, nil
}

// BuildDAG строит DAG из списка задач.
func BuildDAG(tasks []domain.TaskDef) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node, len(tasks)),
		RootNodes: make([]*Node, 0),
		declared:  make([]*Node, 0, len(tasks)),
	}

	// Первый проход: создаём все узлы
	for i := range tasks {
		task := &tasks[i]
		if _, exists := dag.Nodes[task.Name]; exists {
			return nil, NewConfigError(task.Name, "name",
				"duplicate task name: "+task.Name, ErrDuplicateTask)
		}
		node := &Node{
			Task:       task,
			ID:         task.Name,
			Index:      i,
			DependsOn:  make([]*Node, 0, len(task.DependsOn)),
			Dependents: make([]*Node, 0),
		}
		dag.Nodes[task.Name] = node
		dag.declared = append(dag.declared, node)
	}

	// Второй проход: связываем узлы по зависимостям
	for _, node := range dag.declared {
		for _, depID := range node.Task.DependsOn {
			depNode, exists := dag.Nodes[depID]
			if !exists {
				continue
			}
			dag.addEdge(depNode, node)
		}
	}

	dag.findRootNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты в depends_on не учитываются в InDegree дважды.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.declared {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Из готовых узлов всегда берётся объявленный раньше остальных.
func (d *DAG) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int, len(d.Nodes))
	for id, node := range d.Nodes {
		inDegree[id] = node.InDegree
	}

	ready := &nodeHeap{}
	for _, node := range d.RootNodes {
		heap.Push(ready, node)
	}

	order := make([]*Node, 0, len(d.Nodes))
	for ready.Len() > 0 {
		node := heap.Pop(ready).(*Node)
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(d.Nodes) {
		return nil, &CycleError{Cycle: d.findCycle(inDegree)}
	}

	return order, nil
}

// findCycle восстанавливает один цикл среди узлов, не попавших в порядок.
//
// У каждого такого узла есть необработанная зависимость, поэтому проход
// по ним назад обязательно замыкается.
func (d *DAG) findCycle(inDegree map[string]int) []string {
	var start *Node
	for _, node := range d.declared {
		if inDegree[node.ID] > 0 {
			start = node
			break
		}
	}
	if start == nil {
		return nil
	}

	pos := make(map[string]int)
	path := make([]*Node, 0)
	cur := start
	for {
		if i, seen := pos[cur.ID]; seen {
			cycle := make([]string, 0, len(path)-i+1)
			// path идёт от зависимого к зависимости; разворачиваем в порядок выполнения
			for j := len(path) - 1; j >= i; j-- {
				cycle = append(cycle, path[j].ID)
			}
			return append(cycle, path[len(path)-1].ID)
		}
		pos[cur.ID] = len(path)
		path = append(path, cur)

		var next *Node
		for _, dep := range cur.DependsOn {
			if inDegree[dep.ID] > 0 {
				next = dep
				break
			}
		}
		if next == nil {
			return []string{start.ID}
		}
		cur = next
	}
}

// nodeHeap — min-heap узлов по порядку объявления.
type nodeHeap []*Node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].Index < h[j].Index }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*Node)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
