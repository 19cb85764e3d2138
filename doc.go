/*
 * Copyright 2024 The wtinylfu Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package wtinylfu implements the W-TinyLFU cache eviction policy over
// host-owned items. See details at http://arxiv.org/abs/1512.00727
//
// The population is split into three segments: a tiny admission window
// receiving all new items (~1% of the total), and a main cache managed as a
// Segmented LRU with a probation and a protected segment. A Count-Min sketch
// of access frequencies arbitrates admission from the window into the main
// cache and promotion from probation into the protected segment. The sketch
// counters are halved periodically so that frequency estimates favor recent
// activity.
//
// The container does not store keys or values. The host embeds a Hook in its
// item type and hands items to the container, which links them into intrusive
// lists and flips segment bits while holding a single container-wide lock.
// Victim selection walks the segment tails through a lock-holding eviction
// iterator.
package wtinylfu
