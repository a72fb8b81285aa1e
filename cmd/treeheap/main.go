// treeheap replays allocator workload scripts against an arena heap and
// inspects the result: correctness checking, peak free-structure reporting,
// request timing, and colored renderings of the free tree and heap map.
package main

func main() {
	execute()
}
