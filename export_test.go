package servicex

// InstanceCount reports how many instances the container keeps.
func InstanceCount(c *Container) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}
