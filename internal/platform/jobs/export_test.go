package jobs

func SetQueueSize(s *Service, size int) {
	s.queue = make(chan job, size)
}
