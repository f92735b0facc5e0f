package sched

// Test hooks for building DAGs by hand.

func (d *DAG) AddTask(id int, name string) { d.addTask(id, name, Normal) }
func (d *DAG) AddEdge(from, to int)        { d.addEdge(from, to) }
