package mocks

//go:generate mockery --dir=.. --name=UserRepository --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=RoomRepository --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=TaskRepository --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=SubtaskRepository --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=CompletionRepository --output=. --outpkg=mocks
//go:generate mockery --dir=.. --name=StateRepository --output=. --outpkg=mocks
