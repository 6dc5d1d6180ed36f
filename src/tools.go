//go:build tools

// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tools pins the versions of the development tools: the goconvey web
// runner and the test coverage checker.
package tools

import (
	_ "github.com/sergey-a-berezin/gocovcheck"
	_ "github.com/smartystreets/goconvey"
)
